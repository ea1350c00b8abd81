package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type WishlistHandler struct {
	timeout time.Duration
}

func NewWishlistHandler(timeout time.Duration) *WishlistHandler {
	return &WishlistHandler{timeout: timeout}
}

type WishlistRequestDTO struct {
	ProductID string `json:"productId"`
}

type WishlistStatusDTO struct {
	ProductID  string `json:"productId"`
	InWishlist bool   `json:"inWishlist"`
}

// GET /api/v1/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, getSession(r.Context()).Wishlist())
}

// POST /api/v1/wishlist
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req WishlistRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	items, err := getSession(ctx).AddToWishlist(ctx, req.ProductID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// GET /api/v1/wishlist/{product_id}
func (h *WishlistHandler) Contains(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "product_id")
	respondJSON(w, http.StatusOK, WishlistStatusDTO{ProductID: id, InWishlist: getSession(r.Context()).InWishlist(id)})
}

// DELETE /api/v1/wishlist/{product_id}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, getSession(ctx).RemoveFromWishlist(ctx, chi.URLParam(r, "product_id")))
}
