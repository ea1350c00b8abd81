package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/go-chi/chi/v5"
)

type AddressHandler struct {
	timeout time.Duration
}

func NewAddressHandler(timeout time.Duration) *AddressHandler {
	return &AddressHandler{timeout: timeout}
}

// GET /api/v1/addresses
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	refresh := r.URL.Query().Get("refresh") == "true"
	addresses, err := getSession(ctx).Addresses(ctx, refresh)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, addresses)
}

// POST /api/v1/addresses
func (h *AddressHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Address
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := getSession(ctx).AddAddress(ctx, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// PUT /api/v1/addresses/{address_id}
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Address
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "address_id")
	updated, err := getSession(ctx).UpdateAddress(ctx, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/addresses/{address_id}
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := getSession(ctx).DeleteAddress(ctx, chi.URLParam(r, "address_id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/addresses/{address_id}/default
func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addresses, err := getSession(ctx).SetDefaultAddress(ctx, chi.URLParam(r, "address_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, addresses)
}
