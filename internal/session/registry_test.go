package session

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ReusesAndGeneratesIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.registry.Resolve(ctx, "sess-1")
	b := f.registry.Resolve(ctx, "sess-1")
	c := f.registry.Resolve(ctx, "")

	assert.Same(t, a, b)
	assert.NotEmpty(t, c.ID())
	assert.NotEqual(t, "sess-1", c.ID())
	assert.Equal(t, 2, f.registry.Len())
	assert.Nil(t, f.registry.Get("unknown"))
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registry.Resolve(ctx, "old")
	f.now = f.now.Add(20 * time.Minute)
	f.registry.Resolve(ctx, "fresh")
	f.now = f.now.Add(15 * time.Minute)

	_, evicted := f.registry.Sweep(ctx)

	assert.Equal(t, 1, evicted)
	assert.Nil(t, f.registry.Get("old"))
	assert.NotNil(t, f.registry.Get("fresh"))
}

func TestSweep_ExpiresPaymentWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t)
	require.NoError(t, s.SelectAddress(ctx, "addr-1"))
	_, err := s.CreateIntent(ctx, domain.CheckoutOptions{})
	require.NoError(t, err)

	f.now = f.now.Add(11 * time.Minute)
	s.touch(f.now)
	expired, evicted := f.registry.Sweep(ctx)

	assert.Equal(t, 1, expired)
	assert.Zero(t, evicted)
	assert.Equal(t, domain.CheckoutStateAddressSelection, s.Checkout().State().State)
}

func TestClearUserCart_OnlyMatchingUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t)
	_, err := s.Cart().Load(ctx)
	require.NoError(t, err)
	require.False(t, s.Cart().View().Empty)
	guest := f.registry.Resolve(ctx, "guest")

	assert.Zero(t, f.registry.ClearUserCart(ctx, "user-2"))
	assert.Equal(t, 1, f.registry.ClearUserCart(ctx, "user-1"))

	assert.True(t, s.Cart().View().Empty)
	assert.True(t, guest.Cart().View().Empty)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		f.registry.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
