package domain

import "time"

// CustomerMapping is the single source of truth translating between the
// application's user id space and the billing platform's customer id space.
// At most one remote customer id exists per local user id.
type CustomerMapping struct {
	UserID          string    `gorm:"column:id;primaryKey"`
	PolarCustomerID string    `gorm:"column:polar_customer_id;uniqueIndex;not null"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CustomerMapping) TableName() string { return "customers" }
