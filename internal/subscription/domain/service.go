package domain

import (
	"context"
	"errors"

	"github.com/studyloop/polarsync/internal/polar"
)

// Service reconciles subscription lifecycle events into local state.
type Service interface {
	// Reconcile applies one subscription event: resolves the owning local
	// user, guarantees the customer mapping and price reference exist,
	// then upserts the user and subscription rows. Re-processing the same
	// event is a no-op beyond overwriting identical values.
	Reconcile(ctx context.Context, event *polar.SubscriptionEvent) error
}

var (
	// ErrUnresolvableIdentity means no fallback could map the remote
	// customer to a local user. Fatal: the delivery must fail so the
	// platform retries and operators are alerted.
	ErrUnresolvableIdentity = errors.New("unresolvable_identity")

	// ErrPriceReferenceViolation marks a foreign-key rejection of the
	// subscription's price reference.
	ErrPriceReferenceViolation = errors.New("price_reference_violation")
)
