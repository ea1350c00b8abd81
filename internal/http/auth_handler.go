package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/domain"
)

type AuthHandler struct {
	timeout time.Duration
}

func NewAuthHandler(timeout time.Duration) *AuthHandler {
	return &AuthHandler{timeout: timeout}
}

type SendOTPRequestDTO struct {
	PhoneNumber string `json:"phoneNumber"`
	IsResend    bool   `json:"isResend"`
}

type VerifyOTPRequestDTO struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type LoginResponseDTO struct {
	User      *domain.User `json:"user"`
	IsNewUser bool         `json:"isNewUser"`
}

type RegisterDeviceRequestDTO struct {
	DeviceToken string `json:"deviceToken"`
	Platform    string `json:"platform"`
}

// POST /api/v1/auth/otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SendOTPRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := getSession(ctx).SendOTP(ctx, req.PhoneNumber, req.IsResend); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

// POST /api/v1/auth/otp/verify
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req VerifyOTPRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := getSession(ctx).VerifyOTP(ctx, req.PhoneNumber, req.OTP)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, LoginResponseDTO{User: result.User, IsNewUser: result.IsNewUser})
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Registration
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := getSession(ctx).Register(ctx, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// GET /api/v1/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := getSession(ctx).Profile(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// PUT /api/v1/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Registration
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := getSession(ctx).UpdateProfile(ctx, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	getSession(r.Context()).Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/devices
func (h *AuthHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := getSession(r.Context()).RegisterDevice(r.Context(), req.DeviceToken, req.Platform); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
