package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the denormalized local user record this engine keeps current.
// Authoritative identity data lives in the auth system; email is mirrored
// here only as a fallback source.
type User struct {
	ID                 string    `gorm:"primaryKey"`
	Email              string    `gorm:"type:text;not null"`
	SubscriptionStatus string    `gorm:"type:text"`
	CurrentPlanID      *string   `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Subscription holds synced subscription state. The remote subscription id
// is the idempotency key: the first webhook for an id creates the row, every
// later one updates it. Rows are never deleted; cancellation is a status.
type Subscription struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	UserID              string       `gorm:"not null;index"`
	PolarSubscriptionID string       `gorm:"uniqueIndex;not null"`
	PolarProductID      string       `gorm:"type:text"`
	Status              string       `gorm:"type:text;not null"`
	PriceID             *string      `gorm:"type:text"`
	CancelAtPeriodEnd   bool         `gorm:"not null;default:false"`
	CurrentPeriodStart  *time.Time   `gorm:""`
	CurrentPeriodEnd    *time.Time   `gorm:""`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
