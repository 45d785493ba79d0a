package events

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/studyloop/polarsync/internal/clock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOutbox(t *testing.T, name string) (*Outbox, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS billing_events (
			id BIGINT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload TEXT,
			dedupe_key TEXT UNIQUE,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create billing_events: %v", err)
	}
	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	clk := clock.Fixed{At: time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)}
	return NewOutbox(db, node, clk), db
}

func TestPublishStoresEvent(t *testing.T) {
	outbox, db := setupOutbox(t, "outbox_store")

	err := outbox.Publish(context.Background(), Event{
		Type:      EventCatalogSynced,
		Payload:   CatalogSyncedPayload{PolarProductID: "prod_1"}.ToMap(),
		DedupeKey: "product.created:prod_1",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	var eventType string
	if err := db.Table("billing_events").Select("event_type").Take(&eventType).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if eventType != EventCatalogSynced {
		t.Fatalf("expected %q, got %q", EventCatalogSynced, eventType)
	}
}

func TestPublishDeduplicatesOnKey(t *testing.T) {
	outbox, db := setupOutbox(t, "outbox_dedupe")

	event := Event{
		Type:      EventSubscriptionSynced,
		Payload:   SubscriptionSyncedPayload{PolarSubscriptionID: "sub_1", Status: "active"}.ToMap(),
		DedupeKey: "subscription.active:sub_1:active",
	}
	for i := 0; i < 2; i++ {
		if err := outbox.Publish(context.Background(), event); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	var rows int64
	db.Table("billing_events").Count(&rows)
	if rows != 1 {
		t.Fatalf("expected one row after duplicate publish, got %d", rows)
	}
}

func TestPublishRequiresEventType(t *testing.T) {
	outbox, _ := setupOutbox(t, "outbox_notype")

	if err := outbox.Publish(context.Background(), Event{DedupeKey: "key"}); err == nil {
		t.Fatalf("expected error for missing event type")
	}
}

func TestPublishTxRequiresTransaction(t *testing.T) {
	outbox, _ := setupOutbox(t, "outbox_notx")

	err := outbox.PublishTx(context.Background(), nil, Event{Type: EventCatalogSynced})
	if err == nil {
		t.Fatalf("expected error for missing transaction")
	}
}

func TestPublishTxRollsBackWithTransaction(t *testing.T) {
	outbox, db := setupOutbox(t, "outbox_rollback")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := outbox.PublishTx(context.Background(), tx, Event{
			Type:      EventCatalogSynced,
			DedupeKey: "product.updated:prod_9",
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	if err == nil {
		t.Fatalf("expected transaction to fail")
	}

	var rows int64
	db.Table("billing_events").Count(&rows)
	if rows != 0 {
		t.Fatalf("expected rollback to discard the event, got %d rows", rows)
	}
}
