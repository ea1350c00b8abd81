package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, success bool, message string, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"success": success,
		"message": message,
		"data":    data,
	}))
}

func authed() context.Context {
	return WithToken(context.Background(), "tok-123")
}

func TestFetchCart_SendsTokenAndDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "tok-123", r.Header.Get(TokenHeader))
		writeEnvelope(t, w, http.StatusOK, true, "", map[string]any{
			"items": []map[string]any{{
				"itemId": "i1", "productId": "p1", "variantId": "v1", "quantity": 2,
				"priceSnapshot": map[string]any{"basePrice": "600", "sellingPrice": "500"},
			}},
			"itemCount":      1,
			"pricingSummary": map[string]any{"finalAmount": "1040"},
		})
	}))
	defer srv.Close()

	client := NewCartClient(Options{BaseURL: srv.URL})
	cart, err := client.FetchCart(authed())

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "i1", cart.Items[0].ItemID)
	assert.True(t, decimal.NewFromInt(1040).Equal(cart.PricingSummary.FinalAmount))
}

func TestCall_MissingTokenNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := NewCartClient(Options{BaseURL: srv.URL})
	_, err := client.FetchCart(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Zero(t, hits.Load())
}

func TestCall_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		success bool
		message string
		check   func(t *testing.T, err error)
	}{
		{
			name:   "401 is unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
			},
		},
		{
			name:   "403 is unauthorized",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
			},
		},
		{
			name:    "4xx keeps server message",
			status:  http.StatusBadRequest,
			message: "Coupon expired",
			check: func(t *testing.T, err error) {
				var svcErr *domain.ServiceError
				require.ErrorAs(t, err, &svcErr)
				assert.Equal(t, http.StatusBadRequest, svcErr.Status)
				assert.Equal(t, "Coupon expired", domain.UserMessage(err))
			},
		},
		{
			name:    "success false on 200",
			status:  http.StatusOK,
			success: false,
			message: "Out of stock",
			check: func(t *testing.T, err error) {
				var svcErr *domain.ServiceError
				require.ErrorAs(t, err, &svcErr)
				assert.Equal(t, "Out of stock", svcErr.Message)
			},
		},
		{
			name:   "404 matches not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(t, w, tt.status, tt.success, tt.message, nil)
			}))
			defer srv.Close()

			client := NewCartClient(Options{BaseURL: srv.URL})
			_, err := client.FetchCart(authed())

			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCall_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewCartClient(Options{BaseURL: url})
	_, err := client.FetchCart(authed())

	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestCall_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewCartClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.FetchCart(authed())

	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestCall_BreakerOpensOnServerErrorsOnly(t *testing.T) {
	var hits atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeEnvelope(t, w, int(status.Load()), false, "nope", nil)
	}))
	defer srv.Close()

	client := NewCartClient(Options{BaseURL: srv.URL})

	for i := 0; i < 10; i++ {
		_, err := client.FetchCart(authed())
		assert.NotErrorIs(t, err, domain.ErrNetwork)
	}
	assert.Equal(t, int32(10), hits.Load())

	status.Store(http.StatusInternalServerError)
	for i := 0; i < 5; i++ {
		_, _ = client.FetchCart(authed())
	}
	before := hits.Load()

	_, err := client.FetchCart(authed())

	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the server")
}

func TestCall_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusOK, true, "", map[string]any{"items": []any{}})
	}))
	defer srv.Close()

	m := metrics.New()
	client := NewCartClient(Options{BaseURL: srv.URL, Metrics: m})
	_, err := client.FetchCart(authed())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `storefront_remote_requests_total{operation="fetch_cart",outcome="ok",service="cart"} 1`)
}
