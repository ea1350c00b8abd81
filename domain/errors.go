package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrQuantityLimitExceeded = errors.New("quantity limit exceeded")
	ErrNetwork               = errors.New("network error")
	ErrSessionExpired        = errors.New("checkout session expired")
	ErrMissingAddress        = errors.New("no delivery address selected")
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition     = errors.New("illegal transition of checkout state")
	ErrIntentUnavailable     = errors.New("checkout intent is expired or already used")
	ErrNotFound              = errors.New("not found")
)

// QuantityLimitError reports a rejected quantity change. It matches
// ErrQuantityLimitExceeded with errors.Is.
type QuantityLimitError struct {
	Max int
}

func (e *QuantityLimitError) Error() string {
	return fmt.Sprintf("quantity limit exceeded: maximum is %d", e.Max)
}

func (e *QuantityLimitError) Is(target error) bool {
	return target == ErrQuantityLimitExceeded
}

// ServiceError is a failure reported by a remote service. Message is the
// server's own text and is shown to the user verbatim.
type ServiceError struct {
	Service string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s service error (status %d)", e.Service, e.Status)
	}
	return fmt.Sprintf("%s service error (status %d): %s", e.Service, e.Status, e.Message)
}

// Is lets a 404 from any service match ErrNotFound.
func (e *ServiceError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}

// ValidationError carries per-field messages for form input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

const genericFailureMessage = "Something went wrong. Please try again."

// UserMessage turns any error into text fit for a toast. Server messages win
// over local wording; unknown failures get a generic fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}

	var qtyErr *QuantityLimitError
	if errors.As(err, &qtyErr) {
		return fmt.Sprintf("You cannot add more than %d items", qtyErr.Max)
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return "Please correct the highlighted fields"
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Please log in to continue"
	case errors.Is(err, ErrSessionExpired):
		return "Your session has expired. Please return to checkout and try again."
	case errors.Is(err, ErrMissingAddress):
		return "Please select a delivery address"
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty"
	case errors.Is(err, ErrQuantityLimitExceeded):
		return "You cannot add more of this item"
	case errors.Is(err, ErrIntentUnavailable):
		return "This order can no longer be paid. Please start checkout again."
	}
	return genericFailureMessage
}
