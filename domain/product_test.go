package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func catalog() []Product {
	return []Product{
		{ID: "p1", LowestSellingPrice: decimal.NewFromInt(900), Variants: []Variant{{Size: "M", Color: "red"}}},
		{ID: "p2", LowestSellingPrice: decimal.NewFromInt(300), Variants: []Variant{{Size: "L", Color: "blue"}}},
		{ID: "p3", BasePrice: decimal.NewFromInt(500), Variants: []Variant{{Size: "M", Color: "Blue"}}},
	}
}

func ids(products []Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestProductFilter_ZeroValueKeepsOrder(t *testing.T) {
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(ProductFilter{}.Apply(catalog())))
}

func TestProductFilter_VariantAttributes(t *testing.T) {
	assert.Equal(t, []string{"p1", "p3"}, ids(ProductFilter{Size: "m"}.Apply(catalog())))
	assert.Equal(t, []string{"p2", "p3"}, ids(ProductFilter{Color: "blue"}.Apply(catalog())))
	assert.Equal(t, []string{"p3"}, ids(ProductFilter{Size: "M", Color: "blue"}.Apply(catalog())))
}

func TestProductFilter_PriceRangeUsesSellingPrice(t *testing.T) {
	f := ProductFilter{MinPrice: decimal.NewFromInt(400), MaxPrice: decimal.NewFromInt(800)}
	assert.Equal(t, []string{"p3"}, ids(f.Apply(catalog())))
}

func TestProductFilter_Sort(t *testing.T) {
	products := catalog()
	assert.Equal(t, []string{"p2", "p3", "p1"}, ids(ProductFilter{Sort: SortPriceAsc}.Apply(products)))
	assert.Equal(t, []string{"p1", "p3", "p2"}, ids(ProductFilter{Sort: SortPriceDesc}.Apply(products)))
	assert.Equal(t, "p1", products[0].ID, "input untouched")
	assert.False(t, SortOrder("newest").Valid())
}
