package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studyloop/polarsync/internal/catalog/domain"
	"github.com/studyloop/polarsync/internal/catalog/repository"
	"github.com/studyloop/polarsync/internal/clock"
	"github.com/studyloop/polarsync/internal/polar"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCatalogDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			name TEXT NOT NULL,
			description TEXT,
			image TEXT,
			metadata TEXT,
			updated_at DATETIME NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create products: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS prices (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			price_amount BIGINT,
			type TEXT NOT NULL,
			recurring_interval TEXT,
			metadata TEXT,
			updated_at DATETIME NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create prices: %v", err)
	}
	return db
}

func newCatalogService(db *gorm.DB, at time.Time) *Service {
	return &Service{
		db:    db,
		log:   zap.NewNop(),
		repo:  repository.Provide(),
		clock: clock.Fixed{At: at},
	}
}

func productEventFixture() *polar.ProductEvent {
	amount := int64(990)
	interval := "month"
	description := "Pro plan"
	return &polar.ProductEvent{
		ProductSnapshot: polar.ProductSnapshot{
			ID:          "prod_1",
			Name:        "Pro",
			Description: &description,
			Medias:      []polar.Media{{PublicURL: "https://cdn.example.com/pro.png"}},
		},
		Prices: []polar.PriceSnapshot{{
			ID:                "price_1",
			PriceAmount:       &amount,
			Type:              polar.PriceTypeRecurring,
			RecurringInterval: &interval,
		}},
	}
}

func TestUpsertCatalogCreatesMirror(t *testing.T) {
	db := setupCatalogDB(t, "catalog_create")
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newCatalogService(db, now)

	if err := svc.UpsertCatalog(context.Background(), productEventFixture()); err != nil {
		t.Fatalf("upsert catalog: %v", err)
	}

	var product domain.Product
	if err := db.First(&product, "id = ?", "prod_1").Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if !product.Active {
		t.Fatalf("expected active product")
	}
	if product.Image == nil || *product.Image != "https://cdn.example.com/pro.png" {
		t.Fatalf("expected first media as image, got %v", product.Image)
	}

	var price domain.Price
	if err := db.First(&price, "id = ?", "price_1").Error; err != nil {
		t.Fatalf("load price: %v", err)
	}
	if price.ProductID != "prod_1" {
		t.Fatalf("expected price bound to prod_1, got %q", price.ProductID)
	}
	if price.PriceAmount == nil || *price.PriceAmount != 990 {
		t.Fatalf("expected amount 990, got %v", price.PriceAmount)
	}
}

func TestUpsertCatalogIsIdempotent(t *testing.T) {
	db := setupCatalogDB(t, "catalog_idempotent")
	svc := newCatalogService(db, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	event := productEventFixture()
	for i := 0; i < 3; i++ {
		if err := svc.UpsertCatalog(context.Background(), event); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	var products, prices int64
	db.Model(&domain.Product{}).Count(&products)
	db.Model(&domain.Price{}).Count(&prices)
	if products != 1 || prices != 1 {
		t.Fatalf("expected 1 product and 1 price, got %d and %d", products, prices)
	}
}

func TestUpsertCatalogOverwritesFields(t *testing.T) {
	db := setupCatalogDB(t, "catalog_overwrite")
	svc := newCatalogService(db, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	event := productEventFixture()
	if err := svc.UpsertCatalog(context.Background(), event); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	event.Name = "Pro Annual"
	event.IsArchived = true
	if err := svc.UpsertCatalog(context.Background(), event); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var product domain.Product
	if err := db.First(&product, "id = ?", "prod_1").Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.Name != "Pro Annual" {
		t.Fatalf("expected renamed product, got %q", product.Name)
	}
	if product.Active {
		t.Fatalf("expected archived product to deactivate")
	}
}

func TestUpsertCatalogRejectsInvalidEvent(t *testing.T) {
	db := setupCatalogDB(t, "catalog_invalid")
	svc := newCatalogService(db, time.Now().UTC())

	if err := svc.UpsertCatalog(context.Background(), nil); !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
	if err := svc.UpsertCatalog(context.Background(), &polar.ProductEvent{}); !errors.Is(err, polar.ErrMissingProductID) {
		t.Fatalf("expected missing product id, got %v", err)
	}
}

func TestRepairPriceBackfillsAndToleratesDuplicates(t *testing.T) {
	db := setupCatalogDB(t, "catalog_repair")
	svc := newCatalogService(db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	product := polar.ProductSnapshot{ID: "prod_2", Name: "Starter"}
	amount := int64(500)
	price := polar.PriceSnapshot{ID: "price_2", PriceAmount: &amount, Type: polar.PriceTypeRecurring}

	if err := svc.RepairPrice(context.Background(), product, price); err != nil {
		t.Fatalf("repair: %v", err)
	}
	if err := svc.RepairPrice(context.Background(), product, price); err != nil {
		t.Fatalf("repair redelivery: %v", err)
	}

	exists, err := svc.PriceExists(context.Background(), "price_2")
	if err != nil {
		t.Fatalf("price exists: %v", err)
	}
	if !exists {
		t.Fatalf("expected repaired price to exist")
	}
}

func TestRepairPriceDoesNotClobberCatalogRow(t *testing.T) {
	db := setupCatalogDB(t, "catalog_noclobber")
	svc := newCatalogService(db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	if err := svc.UpsertCatalog(context.Background(), productEventFixture()); err != nil {
		t.Fatalf("upsert catalog: %v", err)
	}

	// A later subscription snapshot may carry an older product shape; repair
	// must not overwrite what the catalog event already mirrored.
	stale := polar.ProductSnapshot{ID: "prod_1", Name: "Old Name"}
	amount := int64(100)
	if err := svc.RepairPrice(context.Background(), stale, polar.PriceSnapshot{ID: "price_1", PriceAmount: &amount, Type: polar.PriceTypeRecurring}); err != nil {
		t.Fatalf("repair: %v", err)
	}

	var product domain.Product
	if err := db.First(&product, "id = ?", "prod_1").Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.Name != "Pro" {
		t.Fatalf("expected catalog row untouched, got %q", product.Name)
	}

	var price domain.Price
	if err := db.First(&price, "id = ?", "price_1").Error; err != nil {
		t.Fatalf("load price: %v", err)
	}
	if price.PriceAmount == nil || *price.PriceAmount != 990 {
		t.Fatalf("expected existing price untouched, got %v", price.PriceAmount)
	}
}

func TestPriceExistsBlankID(t *testing.T) {
	db := setupCatalogDB(t, "catalog_blank")
	svc := newCatalogService(db, time.Now().UTC())

	exists, err := svc.PriceExists(context.Background(), "  ")
	if err != nil {
		t.Fatalf("price exists: %v", err)
	}
	if exists {
		t.Fatalf("expected blank id to miss")
	}
}
