// Package session holds the per-visitor state container: the credential,
// the cart synchronizer, the checkout machine, the saved addresses and the
// wishlist.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/cartsync"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/localcart"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/remote"
	"github.com/fjod/storefront/internal/wishlist"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

// Consumers define this interface
type AuthService interface {
	SendOTP(ctx context.Context, phone string, isResend bool) error
	VerifyOTP(ctx context.Context, phone, otp string) (*domain.AuthResult, error)
	Profile(ctx context.Context) (*domain.User, error)
	Register(ctx context.Context, reg domain.Registration) (string, *domain.User, error)
	UpdateProfile(ctx context.Context, reg domain.Registration) (*domain.User, error)
	ListAddresses(ctx context.Context) ([]domain.Address, error)
	AddAddress(ctx context.Context, addr domain.Address) (*domain.Address, error)
	UpdateAddress(ctx context.Context, addr domain.Address) (*domain.Address, error)
	DeleteAddress(ctx context.Context, id string) error
	SetDefaultAddress(ctx context.Context, id string) error
}

type OrderService interface {
	checkout.OrderService
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, deviceToken, platform string)
}

// GuestCartStore persists guest lines by session id.
type GuestCartStore interface {
	Load(ctx context.Context, sessionID string) ([]domain.CartLineItem, error)
	Save(ctx context.Context, sessionID string, lines []domain.CartLineItem) error
	Delete(ctx context.Context, sessionID string) error
}

// WishlistStore persists wishlists by session id.
type WishlistStore interface {
	Load(ctx context.Context, sessionID string) ([]domain.WishlistItem, error)
	Save(ctx context.Context, sessionID string, items []domain.WishlistItem) error
}

// Deps are shared by every session of the process. Ledger, Snapshots,
// GuestCarts, Wishlists and Push are optional.
type Deps struct {
	Auth       AuthService
	Cart       cartsync.CartService
	Catalog    cartsync.Catalog
	Orders     OrderService
	Push       DeviceRegistrar
	Ledger     checkout.IntentLedger
	Snapshots  cache.SnapshotCache
	GuestCarts GuestCartStore
	Wishlists  WishlistStore
	Policy     localcart.Policy
	Window     time.Duration
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Validate   *validator.Validate
	Group      *singleflight.Group
	Now        func() time.Time
}

func (d *Deps) withDefaults() *Deps {
	cp := *d
	if cp.Logger == nil {
		cp.Logger = slog.Default()
	}
	if cp.Validate == nil {
		cp.Validate = newValidator()
	}
	if cp.Group == nil {
		cp.Group = &singleflight.Group{}
	}
	if cp.Now == nil {
		cp.Now = time.Now
	}
	if cp.Policy.MaxQuantity < 1 {
		cp.Policy = localcart.DefaultPolicy()
	}
	return &cp
}

type Session struct {
	id   string
	deps *Deps
	log  *slog.Logger

	mu        sync.Mutex
	token     string
	user      *domain.User
	isNewUser bool
	addresses []domain.Address
	loaded    bool
	lastSeen  time.Time
	cart      *cartsync.Synchronizer
	checkout  *checkout.Machine
	wishlist  *wishlist.Store
}

func newSession(id string, deps *Deps, lines []domain.CartLineItem, saved []domain.WishlistItem) *Session {
	s := &Session{
		id:       id,
		deps:     deps,
		log:      deps.Logger.With("session_id", id),
		lastSeen: deps.Now(),
		wishlist: wishlist.NewStore(saved),
	}
	var persister cartsync.LinePersister
	if deps.GuestCarts != nil {
		persister = deps.GuestCarts
	}
	s.cart = cartsync.New(cartsync.Options{
		SessionID: id,
		Store:     localcart.NewStore(deps.Policy, lines),
		Cart:      deps.Cart,
		Catalog:   deps.Catalog,
		Snapshots: deps.Snapshots,
		Persister: persister,
		Group:     deps.Group,
		Metrics:   deps.Metrics,
		Logger:    s.log,
	})
	s.checkout = s.newMachine()
	return s
}

func (s *Session) newMachine() *checkout.Machine {
	return checkout.New(checkout.Options{
		SessionID: s.id,
		Orders:    s.deps.Orders,
		Ledger:    s.deps.Ledger,
		Window:    s.deps.Window,
		Now:       s.deps.Now,
		Metrics:   s.deps.Metrics,
		Logger:    s.log,
	})
}

func (s *Session) ID() string { return s.id }

func (s *Session) Cart() *cartsync.Synchronizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

func (s *Session) Checkout() *checkout.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

func (s *Session) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) IsNewUser() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNewUser
}

// Context attaches the session's credential to ctx for remote calls.
func (s *Session) Context(ctx context.Context) context.Context {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return ctx
	}
	return remote.WithToken(ctx, token)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) SendOTP(ctx context.Context, phone string, isResend bool) error {
	phone = strings.TrimSpace(phone)
	if err := s.validatePhone(phone); err != nil {
		return err
	}
	return s.deps.Auth.SendOTP(ctx, phone, isResend)
}

// VerifyOTP logs the session in. Guest lines are discarded; the server cart
// becomes authoritative.
func (s *Session) VerifyOTP(ctx context.Context, phone, otp string) (*domain.AuthResult, error) {
	phone = strings.TrimSpace(phone)
	if err := s.validatePhone(phone); err != nil {
		return nil, err
	}
	if strings.TrimSpace(otp) == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"otp": "is required"}}
	}

	result, err := s.deps.Auth.VerifyOTP(ctx, phone, otp)
	if err != nil {
		return nil, err
	}
	s.login(ctx, result.Token, result.User, result.IsNewUser)
	return result, nil
}

func (s *Session) login(ctx context.Context, token string, user *domain.User, isNewUser bool) {
	userID := ""
	if user != nil {
		userID = user.ID
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.isNewUser = isNewUser
	s.addresses = nil
	s.loaded = false
	cart, machine := s.cart, s.checkout
	s.mu.Unlock()

	cart.Login(userID)
	machine.SetUser(userID)
	if s.deps.GuestCarts != nil {
		if err := s.deps.GuestCarts.Delete(ctx, s.id); err != nil {
			s.log.WarnContext(ctx, "failed to drop guest cart", "error", err)
		}
	}
	s.log.InfoContext(ctx, "session logged in", "user_id", userID, "new_user", isNewUser)
}

// Register completes the profile of a new user and swaps in the token the
// service issues for it.
func (s *Session) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := s.validate(reg); err != nil {
		return nil, err
	}

	token, user, err := s.deps.Auth.Register(s.Context(ctx), reg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if token != "" {
		s.token = token
	}
	if user != nil {
		s.user = user
	}
	s.isNewUser = false
	s.mu.Unlock()

	if user == nil {
		return s.Profile(ctx)
	}
	return s.User(), nil
}

func (s *Session) Profile(ctx context.Context) (*domain.User, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.deps.Auth.Profile(s.Context(ctx))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return s.User(), nil
}

func (s *Session) UpdateProfile(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if err := s.validate(reg); err != nil {
		return nil, err
	}
	user, err := s.deps.Auth.UpdateProfile(s.Context(ctx), reg)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return s.User(), nil
}

// Logout drops the credential and every piece of user state, including the
// checkout attempt.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.isNewUser = false
	s.addresses = nil
	s.loaded = false
	s.checkout = s.newMachine()
	cart := s.cart
	s.mu.Unlock()

	cart.Logout()
	s.log.InfoContext(ctx, "session logged out")
}

// RegisterDevice forwards a push token without waiting for the result.
func (s *Session) RegisterDevice(ctx context.Context, deviceToken, platform string) error {
	if strings.TrimSpace(deviceToken) == "" {
		return &domain.ValidationError{Fields: map[string]string{"deviceToken": "is required"}}
	}
	if !s.Authenticated() {
		return domain.ErrUnauthorized
	}
	if s.deps.Push == nil {
		return nil
	}
	detached := context.WithoutCancel(s.Context(ctx))
	go s.deps.Push.RegisterDevice(detached, deviceToken, platform)
	return nil
}

func (s *Session) ListOrders(ctx context.Context) ([]domain.Order, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	return s.deps.Orders.ListOrders(s.Context(ctx))
}

func (s *Session) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	return s.deps.Orders.GetOrder(s.Context(ctx), orderID)
}

// SelectAddress picks one of the user's saved addresses for checkout.
func (s *Session) SelectAddress(ctx context.Context, addressID string) error {
	if addressID == "" {
		return domain.ErrMissingAddress
	}
	addresses, err := s.Addresses(ctx, false)
	if err != nil {
		return err
	}
	for _, a := range addresses {
		if a.ID == addressID {
			return s.Checkout().SelectAddress(ctx, a)
		}
	}
	return fmt.Errorf("address %s: %w", addressID, domain.ErrNotFound)
}

// CreateIntent starts payment for the last known server cart. The cart is
// fetched first if this session has not seen it yet.
func (s *Session) CreateIntent(ctx context.Context, opts domain.CheckoutOptions) (*domain.CheckoutIntent, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	ctx = s.Context(ctx)
	cart := s.Cart()
	snapshot := cart.Snapshot()
	if snapshot == nil {
		if _, err := cart.Load(ctx); err != nil {
			return nil, err
		}
		snapshot = cart.Snapshot()
		if snapshot == nil {
			if err := cart.Err(); err != nil {
				return nil, err
			}
		}
	}
	return s.Checkout().CreateIntent(ctx, opts, snapshot)
}

// Pay submits the payment. A successful order empties the cart.
func (s *Session) Pay(ctx context.Context, method domain.PaymentMethod) (*domain.OrderConfirmation, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	ctx = s.Context(ctx)
	conf, err := s.Checkout().Pay(ctx, method)
	if err != nil {
		return nil, err
	}
	s.Cart().OrderPlaced(ctx)
	return conf, nil
}

// ClearCart drops the cart after an order placed elsewhere for this user.
func (s *Session) ClearCart(ctx context.Context) {
	s.Cart().OrderPlaced(ctx)
}
