package wishlist

import (
	"testing"

	"github.com/fjod/storefront/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string) domain.WishlistItem {
	return domain.WishlistItem{ProductID: id, Title: "Product " + id, Price: decimal.NewFromInt(499)}
}

func TestAdd_NeverDuplicatesProduct(t *testing.T) {
	store := NewStore(nil)

	assert.True(t, store.Add(item("p1")))
	assert.False(t, store.Add(item("p1")))
	assert.True(t, store.Add(item("p2")))

	items := store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, "p2", items[1].ProductID)
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	store := NewStore([]domain.WishlistItem{item("p1")})

	assert.False(t, store.Remove("p9"))
	assert.True(t, store.Remove("p1"))
	assert.False(t, store.Contains("p1"))
	assert.NotNil(t, store.Items())
	assert.Empty(t, store.Items())
}

func TestReducers_DoNotMutateInput(t *testing.T) {
	in := []domain.WishlistItem{item("p1"), item("p2")}

	out, changed := Remove(in, "p1")
	require.True(t, changed)
	assert.Len(t, out, 1)
	assert.Equal(t, "p1", in[0].ProductID)

	out, changed = Add(in[:1], item("p3"))
	require.True(t, changed)
	assert.Len(t, out, 2)
	assert.Equal(t, "p2", in[1].ProductID)
}

func TestItems_ReturnsCopy(t *testing.T) {
	store := NewStore([]domain.WishlistItem{item("p1")})

	items := store.Items()
	items[0].Title = "changed"

	assert.Equal(t, "Product p1", store.Items()[0].Title)
	assert.True(t, store.Contains("p1"))
}
