package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineKey_RoundTrip(t *testing.T) {
	key := LineKey{ProductID: "p1", Size: "M", Color: "navy blue"}
	parsed, err := ParseLineKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseLineKey("p1-only")
	assert.Error(t, err)
}

func TestServerCart_LineItemsUsesSellingPriceSnapshot(t *testing.T) {
	cart := &ServerCart{Items: []ServerCartItem{{
		ItemID:       "it-1",
		ProductID:    "p1",
		ProductTitle: "Tee",
		Size:         "L",
		Quantity:     2,
		PriceSnapshot: PriceSnapshot{
			BasePrice:    decimal.NewFromInt(999),
			SellingPrice: decimal.NewFromInt(499),
		},
	}}}

	lines := cart.LineItems()
	require.Len(t, lines, 1)
	assert.Equal(t, "it-1", lines[0].ItemID)
	assert.Equal(t, DefaultColor, lines[0].Color)
	assert.True(t, decimal.NewFromInt(499).Equal(lines[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(998).Equal(lines[0].Subtotal()))
}

func TestServerCart_IsEmpty(t *testing.T) {
	var nilCart *ServerCart
	assert.True(t, nilCart.IsEmpty())
	assert.True(t, (&ServerCart{}).IsEmpty())
}
