package service

import (
	"context"
	"strings"
	"time"

	"github.com/studyloop/polarsync/internal/catalog/domain"
	"github.com/studyloop/polarsync/internal/clock"
	"github.com/studyloop/polarsync/internal/polar"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

// UpsertCatalog overwrites the mirrored product and all delivered prices in
// one transaction. A failed write rolls back everything so the platform
// retries the delivery.
func (s *Service) UpsertCatalog(ctx context.Context, event *polar.ProductEvent) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}
	if err := event.Validate(); err != nil {
		return err
	}

	now := s.clock.Now()
	product := productFromSnapshot(event.ProductSnapshot, now)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpsertProduct(ctx, tx, product); err != nil {
			return err
		}
		for i := range event.Prices {
			price := priceFromSnapshot(event.Prices[i], event.ID, now)
			if err := s.repo.UpsertPrice(ctx, tx, price); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) PriceExists(ctx context.Context, priceID string) (bool, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return false, nil
	}
	price, err := s.repo.FindPrice(ctx, s.db, priceID)
	if err != nil {
		return false, err
	}
	return price != nil, nil
}

// RepairPrice backfills a product/price pair from subscription event
// snapshots. Inserts are conflict-tolerant so a racing catalog event or a
// duplicate delivery does not fail the repair.
func (s *Service) RepairPrice(ctx context.Context, product polar.ProductSnapshot, price polar.PriceSnapshot) error {
	if strings.TrimSpace(product.ID) == "" || strings.TrimSpace(price.ID) == "" {
		return domain.ErrInvalidEvent
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertProductIfMissing(ctx, tx, productFromSnapshot(product, now)); err != nil {
			return err
		}
		if err := s.repo.InsertPriceIfMissing(ctx, tx, priceFromSnapshot(price, product.ID, now)); err != nil {
			return err
		}
		s.log.Info("repaired price from event snapshot",
			zap.String("product_id", product.ID),
			zap.String("price_id", price.ID),
		)
		return nil
	})
}

func productFromSnapshot(snapshot polar.ProductSnapshot, now time.Time) *domain.Product {
	product := &domain.Product{
		ID:          snapshot.ID,
		Active:      !snapshot.IsArchived,
		Name:        snapshot.Name,
		Description: snapshot.Description,
		Metadata:    datatypes.JSONMap(snapshot.Metadata),
		UpdatedAt:   now,
	}
	if len(snapshot.Medias) > 0 && strings.TrimSpace(snapshot.Medias[0].PublicURL) != "" {
		image := snapshot.Medias[0].PublicURL
		product.Image = &image
	}
	return product
}

func priceFromSnapshot(snapshot polar.PriceSnapshot, productID string, now time.Time) *domain.Price {
	return &domain.Price{
		ID:                snapshot.ID,
		ProductID:         productID,
		PriceAmount:       snapshot.PriceAmount,
		Type:              snapshot.Type,
		RecurringInterval: snapshot.RecurringInterval,
		Metadata:          datatypes.JSONMap(snapshot.Metadata),
		UpdatedAt:         now,
	}
}
