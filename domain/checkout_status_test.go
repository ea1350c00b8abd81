package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CheckoutState
		want     bool
	}{
		{CheckoutStateAddressSelection, CheckoutStateIntentCreation, true},
		{CheckoutStateAddressSelection, CheckoutStatePayment, false},
		{CheckoutStateIntentCreation, CheckoutStatePayment, true},
		{CheckoutStateIntentCreation, CheckoutStateAddressSelection, true},
		{CheckoutStatePayment, CheckoutStateSuccess, true},
		{CheckoutStatePayment, CheckoutStateFailure, true},
		{CheckoutStatePayment, CheckoutStateAddressSelection, true},
		{CheckoutStateSuccess, CheckoutStateAddressSelection, false},
		{CheckoutStateFailure, CheckoutStatePayment, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestCheckoutState_IsTerminal(t *testing.T) {
	assert.True(t, CheckoutStateSuccess.IsTerminal())
	assert.True(t, CheckoutStateFailure.IsTerminal())
	assert.False(t, CheckoutStatePayment.IsTerminal())
	assert.False(t, CheckoutStateAddressSelection.IsTerminal())
}

func TestIntentStatus_IsTerminal(t *testing.T) {
	assert.False(t, IntentStatusPending.IsTerminal())
	assert.True(t, IntentStatusExpired.IsTerminal())
}
