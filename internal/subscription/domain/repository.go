package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindUser(ctx context.Context, db *gorm.DB, id string) (*User, error)
	FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	UpsertUser(ctx context.Context, db *gorm.DB, user *User) error
	UpdateUserStatus(ctx context.Context, db *gorm.DB, userID, status string, planID *string, now time.Time) error

	// UpsertSubscription inserts or updates by the remote subscription id.
	// A foreign-key rejection of the price reference is returned as
	// ErrPriceReferenceViolation.
	UpsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByPolarID(ctx context.Context, db *gorm.DB, polarSubscriptionID string) (*Subscription, error)
}
