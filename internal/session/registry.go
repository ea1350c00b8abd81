package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/google/uuid"
)

const defaultSweepInterval = time.Minute

// Registry owns every live session of the process.
type Registry struct {
	deps    *Deps
	idleTTL time.Duration
	log     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	d := deps.withDefaults()
	return &Registry{
		deps:     d,
		idleTTL:  idleTTL,
		log:      d.Logger,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session with id, or nil when it is unknown.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	s := r.sessions[id]
	r.mu.RUnlock()
	if s != nil {
		s.touch(r.deps.Now())
	}
	return s
}

// Resolve returns the session with id, creating it when missing. An empty
// id gets a fresh one. Guest lines and the wishlist persisted under id are
// restored.
func (r *Registry) Resolve(ctx context.Context, id string) *Session {
	if id != "" {
		if s := r.Get(id); s != nil {
			return s
		}
	} else {
		id = uuid.NewString()
	}

	var lines []domain.CartLineItem
	if r.deps.GuestCarts != nil {
		loaded, err := r.deps.GuestCarts.Load(ctx, id)
		if err != nil {
			r.log.DebugContext(ctx, "no persisted guest cart", "session_id", id, "error", err)
		} else {
			lines = loaded
		}
	}

	var saved []domain.WishlistItem
	if r.deps.Wishlists != nil {
		loaded, err := r.deps.Wishlists.Load(ctx, id)
		if err != nil {
			r.log.DebugContext(ctx, "no persisted wishlist", "session_id", id, "error", err)
		} else {
			saved = loaded
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := newSession(id, r.deps, lines, saved)
	r.sessions[id] = s
	r.log.DebugContext(ctx, "session created", "session_id", id, "restored_lines", len(lines))
	return s
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ClearUserCart empties the cart of every session logged in as userID.
// Returns the number of sessions touched.
func (r *Registry) ClearUserCart(ctx context.Context, userID string) int {
	n := 0
	for _, s := range r.snapshot() {
		if u := s.User(); u != nil && u.ID == userID {
			s.ClearCart(ctx)
			n++
		}
	}
	return n
}

// Sweep expires overdue payment windows and drops idle sessions.
func (r *Registry) Sweep(ctx context.Context) (expired, evicted int) {
	now := r.deps.Now()
	for _, s := range r.snapshot() {
		if s.Checkout().Expire(ctx) {
			expired++
		}
		if r.idleTTL > 0 && now.Sub(s.idleSince()) > r.idleTTL {
			r.mu.Lock()
			delete(r.sessions, s.ID())
			r.mu.Unlock()
			evicted++
		}
	}
	return expired, evicted
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("session sweeper started", "interval", interval, "idle_ttl", r.idleTTL)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			expired, evicted := r.Sweep(ctx)
			if expired > 0 || evicted > 0 {
				r.log.Info("sessions swept", "expired_intents", expired, "evicted", evicted)
			}
		}
	}
}
