package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/checkout"
)

type CheckoutHandler struct {
	timeout time.Duration
}

func NewCheckoutHandler(timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{timeout: timeout}
}

type SelectAddressRequestDTO struct {
	AddressID string `json:"addressId"`
}

type PaymentRequestDTO struct {
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

type IntentResponseDTO struct {
	Intent   *domain.CheckoutIntent `json:"intent"`
	Checkout checkout.Snapshot      `json:"checkout"`
}

type PaymentResponseDTO struct {
	Confirmation *domain.OrderConfirmation `json:"confirmation"`
	Checkout     checkout.Snapshot         `json:"checkout"`
}

// GET /api/v1/checkout
func (h *CheckoutHandler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, getSession(r.Context()).Checkout().State())
}

// POST /api/v1/checkout/address
func (h *CheckoutHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SelectAddressRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	s := getSession(ctx)
	if err := s.SelectAddress(ctx, strings.TrimSpace(req.AddressID)); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Checkout().State())
}

// POST /api/v1/checkout/intent
func (h *CheckoutHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.CheckoutOptions
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.WalletPointsToUse < 0 {
		handleError(w, r, &domain.ValidationError{Fields: map[string]string{"walletPointsToUse": "must not be negative"}})
		return
	}
	s := getSession(ctx)
	intent, err := s.CreateIntent(ctx, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, IntentResponseDTO{Intent: intent, Checkout: s.Checkout().State()})
}

// POST /api/v1/checkout/payment
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	s := getSession(ctx)
	conf, err := s.Pay(ctx, req.PaymentMethod)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PaymentResponseDTO{Confirmation: conf, Checkout: s.Checkout().State()})
}

// POST /api/v1/checkout/restart
func (h *CheckoutHandler) Restart(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	s.Checkout().Restart()
	respondJSON(w, http.StatusOK, s.Checkout().State())
}
