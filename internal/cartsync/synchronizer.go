// Package cartsync reconciles the optimistic local cart with the cart
// service. Guests work against the local store only. Once a user is logged
// in, the server cart is authoritative and local lines mirror it.
package cartsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/localcart"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Consumers define this interface
type CartService interface {
	FetchCart(ctx context.Context) (*domain.ServerCart, error)
	AddToCart(ctx context.Context, productID, variantID string, quantity int) (*domain.ServerCart, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) error
	RemoveItem(ctx context.Context, itemID string) error
}

type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

// LinePersister stores guest lines between process restarts.
type LinePersister interface {
	Save(ctx context.Context, sessionID string, lines []domain.CartLineItem) error
}

type Options struct {
	SessionID string
	Store     *localcart.Store
	Cart      CartService
	Catalog   Catalog
	// Snapshots and Persister are optional.
	Snapshots cache.SnapshotCache
	Persister LinePersister
	// Group collapses concurrent fetches of the same user across sessions.
	Group   *singleflight.Group
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// View is what the cart page renders.
type View struct {
	Lines       []domain.CartLineItem  `json:"lines"`
	Total       decimal.Decimal        `json:"total"`
	Pricing     *domain.PricingSummary `json:"pricing,omitempty"`
	Source      Source                 `json:"source"`
	Empty       bool                   `json:"empty"`
	CanCheckout bool                   `json:"canCheckout"`
	Stale       bool                   `json:"stale"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
}

type Synchronizer struct {
	sessionID string
	local     *localcart.Store
	cart      CartService
	catalog   Catalog
	snapshots cache.SnapshotCache
	persister LinePersister
	group     *singleflight.Group
	metrics   *metrics.Metrics
	log       *slog.Logger

	mu         sync.Mutex
	userID     string
	authed     bool
	server     *domain.ServerCart
	stale      bool
	nextSeq    uint64
	appliedSeq uint64
	life       lifecycle
}

func New(opts Options) *Synchronizer {
	store := opts.Store
	if store == nil {
		store = localcart.NewStore(localcart.DefaultPolicy(), nil)
	}
	group := opts.Group
	if group == nil {
		group = &singleflight.Group{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{
		sessionID: opts.SessionID,
		local:     store,
		cart:      opts.Cart,
		catalog:   opts.Catalog,
		snapshots: opts.Snapshots,
		persister: opts.Persister,
		group:     group,
		metrics:   opts.Metrics,
		log:       log,
		life:      lifecycle{status: StatusIdle},
	}
}

// Login switches the synchronizer to the server cart of userID. Guest lines
// are not merged into the server cart.
func (s *Synchronizer) Login(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.authed = true
	s.server = nil
	s.stale = false
	s.life.reset()
}

func (s *Synchronizer) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.authed = false
	s.server = nil
	s.stale = false
	s.life.reset()
	s.local.Clear()
}

func (s *Synchronizer) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// AddItem adds one unit of the product variant. The local store is updated
// first; for a logged-in user the result is then replaced by the server's.
func (s *Synchronizer) AddItem(ctx context.Context, productID, size, color string) error {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if color == "" {
		color = domain.DefaultColor
	}

	before := s.local.Lines()
	if err := s.local.AddItem(*product, size, color); err != nil {
		return err
	}

	if !s.Authenticated() {
		s.persist(ctx)
		return nil
	}

	variant, ok := product.FindVariant(size, color)
	if !ok {
		s.local.Replace(before)
		return &domain.ValidationError{Fields: map[string]string{"size": "Please select an available size and colour"}}
	}

	s.begin()
	cart, err := s.cart.AddToCart(ctx, product.ID, variant.VariantID, 1)
	if err != nil {
		s.local.Replace(before)
		s.end(err)
		return err
	}
	s.invalidate()
	s.apply(ctx, s.ticket(), cart)
	s.end(nil)
	return nil
}

// UpdateQuantity sets the quantity of a line. itemID is the server item id
// for logged-in users and the line key for guests. Bounds are checked before
// any remote call; a quantity below one removes the line.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, itemID)
	}
	if !s.Authenticated() {
		key, err := domain.ParseLineKey(itemID)
		if err != nil {
			return domain.ErrNotFound
		}
		if err := s.local.UpdateQuantity(key, quantity); err != nil {
			return err
		}
		s.persist(ctx)
		return nil
	}

	if limit := s.local.Policy().MaxQuantity; quantity > limit {
		return &domain.QuantityLimitError{Max: limit}
	}

	s.begin()
	if err := s.cart.UpdateQuantity(ctx, itemID, quantity); err != nil {
		s.end(err)
		return err
	}
	s.invalidate()
	err := s.refresh(ctx, false)
	s.end(err)
	return err
}

func (s *Synchronizer) RemoveItem(ctx context.Context, itemID string) error {
	if !s.Authenticated() {
		key, err := domain.ParseLineKey(itemID)
		if err != nil {
			return domain.ErrNotFound
		}
		s.local.RemoveItem(key)
		s.persist(ctx)
		return nil
	}

	s.begin()
	if err := s.cart.RemoveItem(ctx, itemID); err != nil {
		s.end(err)
		return err
	}
	s.invalidate()
	err := s.refresh(ctx, false)
	s.end(err)
	return err
}

// Load fetches the server cart for a logged-in user and returns the view.
// When the fetch fails the view falls back to the last known server cart.
// Only ErrUnauthorized is returned; other failures show up in the view.
func (s *Synchronizer) Load(ctx context.Context) (View, error) {
	if !s.Authenticated() {
		return s.View(), nil
	}
	s.begin()
	err := s.refresh(ctx, true)
	s.end(err)
	if errors.Is(err, domain.ErrUnauthorized) {
		return View{}, err
	}
	return s.View(), nil
}

func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{Status: s.life.status, Stale: s.stale}
	if s.life.lastErr != nil {
		v.Message = domain.UserMessage(s.life.lastErr)
	}

	if !s.authed {
		v.Lines = s.local.Lines()
		v.Total = s.local.Total()
		v.Source = SourceLocal
		v.Empty = len(v.Lines) == 0
		return v
	}

	v.Source = SourceServer
	v.Lines = s.server.LineItems()
	if v.Lines == nil {
		v.Lines = []domain.CartLineItem{}
	}
	v.Empty = s.server.IsEmpty()
	v.CanCheckout = !v.Empty
	if s.server != nil {
		pricing := s.server.PricingSummary
		v.Pricing = &pricing
		v.Total = pricing.FinalAmount
	}
	return v
}

// Err returns the error of the last remote request when it failed.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.life.status != StatusFailed {
		return nil
	}
	return s.life.lastErr
}

// Snapshot returns the last server cart applied, or nil.
func (s *Synchronizer) Snapshot() *domain.ServerCart {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	cp := *s.server
	cp.Items = append([]domain.ServerCartItem(nil), s.server.Items...)
	return &cp
}

// OrderPlaced drops the cart after a successful order; the cart service
// clears its copy on its own.
func (s *Synchronizer) OrderPlaced(ctx context.Context) {
	s.invalidate()
	s.mu.Lock()
	userID := s.userID
	s.nextSeq++
	s.appliedSeq = s.nextSeq
	s.server = &domain.ServerCart{}
	s.stale = false
	s.mu.Unlock()

	s.local.Clear()
	if s.snapshots != nil && userID != "" {
		if err := s.snapshots.Delete(ctx, userID); err != nil {
			s.log.WarnContext(ctx, "failed to drop cart snapshot", "user_id", userID, "error", err)
		}
	}
}

func (s *Synchronizer) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.life.begin()
}

// ticket numbers a server read. It must be taken right before the read is
// issued, so a higher number always means a later view of the server.
func (s *Synchronizer) ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

func (s *Synchronizer) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.life.end(err)
}

// refresh reads the server cart. Only plain loads may share an in-flight
// read; the read after a mutation must start after the mutation succeeded.
func (s *Synchronizer) refresh(ctx context.Context, shared bool) error {
	seq := s.ticket()
	var (
		cart *domain.ServerCart
		err  error
	)
	if shared {
		cart, err = s.fetch(ctx)
	} else {
		cart, err = s.cart.FetchCart(ctx)
	}
	if err != nil {
		s.fallback(ctx)
		return err
	}
	s.apply(ctx, seq, cart)
	return nil
}

func (s *Synchronizer) fetch(ctx context.Context) (*domain.ServerCart, error) {
	// The shared read outlives any single caller; the client applies its own
	// timeout.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.flightKey(), func() (any, error) {
		return s.cart.FetchCart(shared)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ServerCart), nil
	}
}

// invalidate makes later loads start a fresh read instead of joining one
// that began before the last mutation.
func (s *Synchronizer) invalidate() {
	s.group.Forget(s.flightKey())
}

func (s *Synchronizer) flightKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "session:" + s.sessionID
	}
	return s.userID
}

// apply installs a server cart unless a newer one was already applied.
func (s *Synchronizer) apply(ctx context.Context, seq uint64, cart *domain.ServerCart) {
	s.mu.Lock()
	if seq < s.appliedSeq || !s.authed {
		s.mu.Unlock()
		s.metrics.CartSnapshot("dropped")
		return
	}
	s.appliedSeq = seq
	s.server = cart
	s.stale = false
	userID := s.userID
	s.local.Replace(cart.LineItems())
	s.mu.Unlock()

	s.metrics.CartSnapshot("applied")
	if s.snapshots != nil && userID != "" {
		if err := s.snapshots.Set(ctx, userID, cart); err != nil {
			s.log.WarnContext(ctx, "failed to cache cart snapshot", "user_id", userID, "error", err)
		}
	}
}

// fallback marks the in-memory snapshot stale, or loads the cached one when
// there is none in memory. It never falls back to optimistic local lines.
func (s *Synchronizer) fallback(ctx context.Context) {
	s.mu.Lock()
	hasServer := s.server != nil
	userID := s.userID
	if hasServer {
		s.stale = true
	}
	s.mu.Unlock()
	if hasServer || s.snapshots == nil || userID == "" {
		return
	}

	cached, err := s.snapshots.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "failed to read cart snapshot", "user_id", userID, "error", err)
		}
		s.metrics.CartSnapshot("cache_miss")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil && s.authed {
		s.server = cached
		s.stale = true
		s.local.Replace(cached.LineItems())
		s.metrics.CartSnapshot("cache_fallback")
	}
}

func (s *Synchronizer) persist(ctx context.Context) {
	if s.persister == nil || s.sessionID == "" {
		return
	}
	if err := s.persister.Save(ctx, s.sessionID, s.local.Lines()); err != nil {
		s.log.WarnContext(ctx, "failed to persist guest cart", "session_id", s.sessionID, "error", err)
	}
}
