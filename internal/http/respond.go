package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/storefront/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleError maps domain failures to HTTP status codes. The message is
// always the user-facing one.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	resp := ErrorResponse{Error: domain.UserMessage(err), Code: code}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		resp.Details = valErr.Fields
	}
	var svcErr *domain.ServiceError
	if errors.As(err, &svcErr) {
		resp.Details = map[string]any{"service": svcErr.Service, "status": svcErr.Status}
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	respondJSON(w, status, resp)
}

func classify(err error) (int, string) {
	var valErr *domain.ValidationError
	var svcErr *domain.ServiceError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.As(err, &valErr):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrQuantityLimitExceeded):
		return http.StatusUnprocessableEntity, "quantity_limit_exceeded"
	case errors.Is(err, domain.ErrMissingAddress):
		return http.StatusUnprocessableEntity, "missing_address"
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusConflict, "session_expired"
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, domain.ErrIntentUnavailable):
		return http.StatusConflict, "intent_unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.As(err, &svcErr):
		if svcErr.Status >= 400 && svcErr.Status < 500 {
			return http.StatusUnprocessableEntity, "service_rejected"
		}
		return http.StatusBadGateway, "service_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
