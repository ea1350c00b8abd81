package domain

// CheckoutState is a state of the checkout orchestration state machine.
type CheckoutState string

const (
	CheckoutStateAddressSelection CheckoutState = "ADDRESS_SELECTION"
	CheckoutStateIntentCreation   CheckoutState = "INTENT_CREATION"
	CheckoutStatePayment          CheckoutState = "PAYMENT"
	CheckoutStateSuccess          CheckoutState = "SUCCESS"
	CheckoutStateFailure          CheckoutState = "FAILURE"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSuccess || s == CheckoutStateFailure
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateAddressSelection: {CheckoutStateIntentCreation},
	CheckoutStateIntentCreation:   {CheckoutStatePayment, CheckoutStateAddressSelection},
	CheckoutStatePayment:          {CheckoutStateSuccess, CheckoutStateFailure, CheckoutStateAddressSelection},
}

// CanTransitionTo reports whether the machine may move from one state to the
// next. Terminal states have no outgoing transitions; leaving them requires
// starting a new attempt.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IntentStatus is the persisted status of a checkout intent.
type IntentStatus string

const (
	IntentStatusPending IntentStatus = "PAYMENT_PENDING"
	IntentStatusPaid    IntentStatus = "PAID"
	IntentStatusFailed  IntentStatus = "FAILED"
	IntentStatusExpired IntentStatus = "EXPIRED"
)

func (s IntentStatus) IsTerminal() bool {
	return s != IntentStatusPending
}

func (s IntentStatus) String() string {
	return string(s)
}
