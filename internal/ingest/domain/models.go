package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the stored copy of a webhook delivery. The provider event
// id carries the at-least-once dedupe: a redelivered event finds its row
// already present.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	ProviderEventID string         `gorm:"uniqueIndex;not null"`
	EventType       string         `gorm:"type:text;not null;index"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time     `gorm:""`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "webhook_events" }
