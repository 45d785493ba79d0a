package domain

import (
	"context"
	"errors"

	"github.com/studyloop/polarsync/internal/polar"
)

// Service maintains the local catalog mirror.
type Service interface {
	// UpsertCatalog overwrites the product row and every delivered price
	// row. Re-applying the same event yields identical stored state.
	UpsertCatalog(ctx context.Context, event *polar.ProductEvent) error

	// PriceExists reports whether a price row is mirrored locally.
	PriceExists(ctx context.Context, priceID string) (bool, error)

	// RepairPrice inserts the product (if missing) and price from event
	// snapshots so a subscription can reference them before the catalog
	// event arrives.
	RepairPrice(ctx context.Context, product polar.ProductSnapshot, price polar.PriceSnapshot) error
}

var (
	ErrInvalidEvent = errors.New("invalid_event")
)
