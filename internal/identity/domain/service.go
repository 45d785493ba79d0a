package domain

import (
	"context"
	"errors"
)

// Service resolves the remote billing customer for a local user, creating
// one when absent.
type Service interface {
	// ResolveOrCreateCustomer returns the remote customer id for the user,
	// walking an ordered fallback chain: stored mapping (validated against
	// the platform), search by external reference, creation, and
	// conflict recovery. The resolved mapping is persisted before return.
	// At most one remote customer is ever created per local user.
	ResolveOrCreateCustomer(ctx context.Context, userID, email string) (string, error)
}

var (
	ErrInvalidUserID = errors.New("invalid_user_id")

	// ErrAmbiguousIdentity means creation hit a uniqueness conflict but the
	// conflicting customer cannot be found by external reference. Operator
	// intervention is required; callers must not swallow this.
	ErrAmbiguousIdentity = errors.New("ambiguous_identity")
)
