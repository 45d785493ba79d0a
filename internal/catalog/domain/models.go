package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Product mirrors a billing platform catalog product. Rows are only ever
// written from catalog events; archival flips Active instead of deleting.
type Product struct {
	ID          string            `gorm:"primaryKey"`
	Active      bool              `gorm:"not null;default:true"`
	Name        string            `gorm:"type:text;not null"`
	Description *string           `gorm:"type:text"`
	Image       *string           `gorm:"type:text"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

// Price mirrors a billing platform price. PriceAmount is nil for pricing
// models without a fixed amount.
type Price struct {
	ID                string            `gorm:"primaryKey"`
	ProductID         string            `gorm:"not null;index"`
	PriceAmount       *int64            `gorm:""`
	Type              string            `gorm:"type:text;not null"`
	RecurringInterval *string           `gorm:"type:text"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Price) TableName() string { return "prices" }
