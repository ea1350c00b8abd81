package domain

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

type Variant struct {
	VariantID  string `json:"variantId"`
	Size       string `json:"size"`
	Color      string `json:"color"`
	ColorImage string `json:"colorImage,omitempty"`
}

type Product struct {
	ID                 string          `json:"productId"`
	Title              string          `json:"title"`
	BasePrice          decimal.Decimal `json:"basePrice"`
	LowestSellingPrice decimal.Decimal `json:"lowestSellingPrice"`
	ThumbnailImage     string          `json:"thumbnailImage"`
	Variants           []Variant       `json:"variants"`
}

// Price is the price used for optimistic local lines.
func (p Product) Price() decimal.Decimal {
	if p.LowestSellingPrice.IsPositive() {
		return p.LowestSellingPrice
	}
	return p.BasePrice
}

// FindVariant resolves a size and colour selection to a server variant.
func (p Product) FindVariant(size, color string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Size == size && (v.Color == color || (color == DefaultColor && v.Color == "")) {
			return v, true
		}
	}
	return Variant{}, false
}

// ImageFor returns the colour image when there is one, else the thumbnail.
func (p Product) ImageFor(size, color string) string {
	if v, ok := p.FindVariant(size, color); ok && v.ColorImage != "" {
		return v.ColorImage
	}
	return p.ThumbnailImage
}

// ProductPage is one page of a paged product listing.
type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	HasMore  bool      `json:"hasMore"`
}

type SortOrder string

const (
	SortNone      SortOrder = ""
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
)

func (o SortOrder) Valid() bool {
	switch o {
	case SortNone, SortPriceAsc, SortPriceDesc:
		return true
	}
	return false
}

// ProductFilter narrows a category listing. Zero values match everything.
type ProductFilter struct {
	Size     string
	Color    string
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
	Sort     SortOrder
}

func (f ProductFilter) matches(p Product) bool {
	price := p.Price()
	if f.MinPrice.IsPositive() && price.LessThan(f.MinPrice) {
		return false
	}
	if f.MaxPrice.IsPositive() && price.GreaterThan(f.MaxPrice) {
		return false
	}
	if f.Size == "" && f.Color == "" {
		return true
	}
	return slices.ContainsFunc(p.Variants, func(v Variant) bool {
		return (f.Size == "" || strings.EqualFold(v.Size, f.Size)) &&
			(f.Color == "" || strings.EqualFold(v.Color, f.Color))
	})
}

// Apply returns the matching products in the requested order. The input is
// not modified.
func (f ProductFilter) Apply(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.matches(p) {
			out = append(out, p)
		}
	}
	switch f.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int { return a.Price().Cmp(b.Price()) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int { return b.Price().Cmp(a.Price()) })
	}
	return out
}
