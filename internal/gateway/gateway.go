// Package gateway holds the payment gateway adapters. Three independently
// shaped integrations (Razorpay, PhonePe, PayPal) are exposed behind one
// interface so reconciliation never touches a gateway's wire format.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Outcome states. Pending means the gateway has not settled the attempt yet;
// it is never a reason to mutate the order.
const (
	OutcomePaid    = "PAID"
	OutcomeFailed  = "FAILED"
	OutcomePending = "PENDING"
)

// Outcome is a gateway-settled payment result. A Failed outcome is a
// definitive decline reported by the gateway itself; transport problems are
// returned as errors instead, so callers can tell "the gateway said no" apart
// from "we could not ask the gateway".
type Outcome struct {
	State         string
	PaymentID     string
	PaymentType   string
	FailureReason string
}

// IntentRef is the gateway-side handle for a not-yet-settled payment attempt
// plus whatever the client needs to continue the flow. Opaque to callers.
type IntentRef struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	ClientKey   string `json:"key,omitempty"`
	AmountMinor int64  `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// Proof is caller-supplied evidence that a payment attempt finished. Which
// fields are meaningful depends on the adapter: Razorpay needs the full
// signature triple, PhonePe and PayPal only need the intent id.
type Proof struct {
	IntentID      string
	TransactionID string
	Signature     string
	PaymentType   string
}

// ErrUnavailable wraps network, timeout and unexpected-response failures when
// reaching a gateway. Orders are left untouched on this error so the caller
// can retry confirmation.
var ErrUnavailable = errors.New("payment gateway unavailable")

// ErrBadProof marks a confirmation request whose proof is missing or
// malformed. The order is not mutated; the caller simply retries with a
// complete proof.
var ErrBadProof = errors.New("incomplete payment proof")

func unavailable(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
}

// Gateway is the uniform capability set every adapter implements.
type Gateway interface {
	Name() string

	// CreateIntent registers a payment attempt for amount (major currency
	// units) against orderRef and returns the client continuation data.
	CreateIntent(ctx context.Context, orderRef string, amount float64) (IntentRef, error)

	// Verify re-derives trust server-side from the proof. It never takes the
	// caller's word for success.
	Verify(ctx context.Context, intentRef string, proof Proof) (Outcome, error)

	// QueryStatus asks the gateway for the current state of an intent.
	QueryStatus(ctx context.Context, intentRef string) (Outcome, error)
}

// minorUnits converts a major-unit amount to the smallest currency unit
// (paise, cents) the gateways bill in.
func minorUnits(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
