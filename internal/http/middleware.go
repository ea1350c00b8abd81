package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/session"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	SessionHeader   = "X-Session-ID"
	RequestIDHeader = "X-Request-ID"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionKey
)

// Consumers define this interface
type SessionResolver interface {
	Resolve(ctx context.Context, id string) *session.Session
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionMiddleware attaches the caller's session. Unknown or missing ids
// get a new session whose id is echoed in the response header.
func SessionMiddleware(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := sessions.Resolve(r.Context(), r.Header.Get(SessionHeader))
			w.Header().Set(SessionHeader, s.ID())
			ctx := context.WithValue(r.Context(), sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func getSession(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// MaxBodyMiddleware caps request bodies at limit bytes.
func MaxBodyMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const defaultLimiterSessions = 10000

// SessionLimiter keeps one token bucket per session. At most maxEntries
// buckets are kept; when full, idle buckets go first, then the least
// recently used one.
type SessionLimiter struct {
	limit      rate.Limit
	burst      int
	idle       time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func NewSessionLimiter(perSecond float64, burst, maxSessions int) *SessionLimiter {
	if maxSessions <= 0 {
		maxSessions = defaultLimiterSessions
	}
	return &SessionLimiter{
		limit:      rate.Limit(perSecond),
		burst:      burst,
		idle:       10 * time.Minute,
		maxEntries: maxSessions,
		now:        time.Now,
		entries:    make(map[string]*limiterEntry),
	}
}

func (l *SessionLimiter) Allow(sessionID string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[sessionID]
	if !ok {
		if len(l.entries) >= l.maxEntries {
			l.pruneLocked(now)
		}
		for len(l.entries) >= l.maxEntries {
			l.evictOldestLocked()
		}
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[sessionID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *SessionLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *SessionLimiter) pruneLocked(now time.Time) {
	for id, e := range l.entries {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.entries, id)
		}
	}
}

func (l *SessionLimiter) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range l.entries {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	delete(l.entries, oldestID)
}

// Middleware rejects requests over the session's budget with 429.
func (l *SessionLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(SessionHeader)
		if s := getSession(r.Context()); s != nil {
			key = s.ID()
		}
		if !l.Allow(key) {
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many cart updates, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
