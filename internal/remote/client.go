// Package remote contains the JSON/REST clients of the external storefront
// services. Every authenticated call reads the user's credential from the
// context and sends it in the accessToken header.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/circuitbreaker"
	"github.com/fjod/storefront/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenHeader is the non-standard credential header the services expect.
const TokenHeader = "accessToken"

const maxResponseBytes = 4 << 20

type tokenKey struct{}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFrom(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey{}).(string); ok {
		return token
	}
	return ""
}

type Options struct {
	Service   string
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Client is shared by all sessions calling one service. It never retries.
type Client struct {
	service string
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *circuitbreaker.Breaker
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewClient(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("service", opts.Service)

	return &Client{
		service: opts.Service,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http:    &http.Client{Transport: otelhttp.NewTransport(base)},
		breaker: circuitbreaker.New(circuitbreaker.Settings{
			Name:   opts.Service,
			Ignore: isBusinessError,
			OnStateChange: func(name, from, to string) {
				log.Warn("circuit breaker state changed", "from", from, "to", to)
			},
		}),
		metrics: opts.Metrics,
		log:     log,
	}
}

// isBusinessError reports errors from a reachable, healthy service.
func isBusinessError(err error) bool {
	if errors.Is(err, domain.ErrNetwork) {
		return false
	}
	var svcErr *domain.ServiceError
	if errors.As(err, &svcErr) && svcErr.Status >= http.StatusInternalServerError {
		return false
	}
	return true
}

// envelope is the response wrapper used by every service.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type call struct {
	op      string
	method  string
	path    string
	body    any
	out     any
	public  bool
	headers map[string]string
}

// do performs one request and returns the server's message.
func (c *Client) do(ctx context.Context, cl call) (string, error) {
	start := time.Now()
	message, err := c.execute(ctx, cl)
	c.metrics.ObserveRemote(c.service, cl.op, outcome(err), time.Since(start))
	if err != nil {
		c.log.DebugContext(ctx, "remote call failed", "op", cl.op, "error", err)
		return "", fmt.Errorf("%s %s: %w", c.service, cl.op, err)
	}
	return message, nil
}

func (c *Client) execute(ctx context.Context, cl call) (string, error) {
	token := TokenFrom(ctx)
	if !cl.public && token == "" {
		return "", domain.ErrUnauthorized
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return "", fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}

	var message string
	err = c.breaker.Do(func() error {
		var callErr error
		message, callErr = c.roundTrip(req, cl.out)
		return callErr
	})
	if circuitbreaker.IsOpen(err) {
		return "", fmt.Errorf("%w: %s unavailable (%v)", domain.ErrNetwork, c.service, err)
	}
	return message, err
}

func (c *Client) roundTrip(req *http.Request, out any) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", domain.ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.ServiceError{Service: c.service, Status: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return "", &domain.ServiceError{Service: c.service, Status: resp.StatusCode, Message: "malformed response"}
	}
	if env.Success != nil && !*env.Success {
		return "", &domain.ServiceError{Service: c.service, Status: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decode %s response: %w", c.service, err)
		}
	}
	return env.Message, nil
}

func outcome(err error) string {
	var svcErr *domain.ServiceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNetwork):
		return "network_error"
	case errors.As(err, &svcErr):
		return "service_error"
	default:
		return "error"
	}
}
