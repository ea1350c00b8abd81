package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	timeout time.Duration
}

func NewCartHandler(timeout time.Duration) *CartHandler {
	return &CartHandler{timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

// itemID reads {item_id}. Guest line keys contain colons and may arrive
// escaped.
func itemID(r *http.Request) string {
	raw := chi.URLParam(r, "item_id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(ctx)
	view, err := s.Cart().Load(s.Context(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		handleError(w, r, &domain.ValidationError{Fields: map[string]string{"productId": "is required"}})
		return
	}
	if strings.TrimSpace(req.Size) == "" {
		handleError(w, r, &domain.ValidationError{Fields: map[string]string{"size": "Please select a size"}})
		return
	}

	s := getSession(ctx)
	if err := s.Cart().AddItem(s.Context(ctx), req.ProductID, req.Size, req.Color); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.Cart().View())
}

// PATCH /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		handleError(w, r, &domain.ValidationError{Fields: map[string]string{"quantity": "is required"}})
		return
	}

	s := getSession(ctx)
	if err := s.Cart().UpdateQuantity(s.Context(ctx), itemID(r), *req.Quantity); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Cart().View())
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(ctx)
	if err := s.Cart().RemoveItem(s.Context(ctx), itemID(r)); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Cart().View())
}
