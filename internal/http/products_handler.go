package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 50
)

// Consumers define this interface
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListByCategory(ctx context.Context, subcategoryID string) ([]domain.Product, error)
	Search(ctx context.Context, query string) ([]domain.Product, error)
	Similar(ctx context.Context, productID string, page, limit int) (*domain.ProductPage, error)
}

type ProductsHandler struct {
	catalog ProductCatalog
	timeout time.Duration
}

func NewProductsHandler(catalog ProductCatalog, timeout time.Duration) *ProductsHandler {
	return &ProductsHandler{catalog: catalog, timeout: timeout}
}

type ProductListResponseDTO struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
}

// GET /api/v1/products/{product_id}
func (h *ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GET /api/v1/products/category/{subcategory_id}?size=&color=&minPrice=&maxPrice=&sort=
func (h *ProductsHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, err := parseFilter(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	products, err := h.catalog.ListByCategory(ctx, chi.URLParam(r, "subcategory_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	products = filter.Apply(products)
	respondJSON(w, http.StatusOK, ProductListResponseDTO{Products: products, Count: len(products)})
}

// GET /api/v1/products/search?q=
func (h *ProductsHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		handleError(w, r, &domain.ValidationError{Fields: map[string]string{"q": "is required"}})
		return
	}
	products, err := h.catalog.Search(ctx, query)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductListResponseDTO{Products: products, Count: len(products)})
}

// GET /api/v1/products/{product_id}/similar?page=&limit=
func (h *ProductsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := intParam(r, "page", 1, 1, 0)
	if err != nil {
		handleError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", defaultPageLimit, 1, maxPageLimit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	result, err := h.catalog.Similar(ctx, chi.URLParam(r, "product_id"), page, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func parseFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Size:  strings.TrimSpace(q.Get("size")),
		Color: strings.TrimSpace(q.Get("color")),
		Sort:  domain.SortOrder(q.Get("sort")),
	}
	fields := map[string]string{}
	if !filter.Sort.Valid() {
		fields["sort"] = "must be price_asc or price_desc"
	}
	for name, dst := range map[string]*decimal.Decimal{"minPrice": &filter.MinPrice, "maxPrice": &filter.MaxPrice} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			fields[name] = "must be a non-negative amount"
			continue
		}
		*dst = v
	}
	if len(fields) == 0 && filter.MaxPrice.IsPositive() && filter.MinPrice.GreaterThan(filter.MaxPrice) {
		fields["minPrice"] = "must not exceed maxPrice"
	}
	if len(fields) > 0 {
		return domain.ProductFilter{}, &domain.ValidationError{Fields: fields}
	}
	return filter, nil
}

// intParam reads an integer query parameter; hi 0 means unbounded.
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || (hi > 0 && v > hi) {
		msg := fmt.Sprintf("must be at least %d", lo)
		if hi > 0 {
			msg = fmt.Sprintf("must be between %d and %d", lo, hi)
		}
		return 0, &domain.ValidationError{Fields: map[string]string{name: msg}}
	}
	return v, nil
}
