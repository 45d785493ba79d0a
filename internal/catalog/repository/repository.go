package repository

import (
	"context"
	"errors"

	"github.com/studyloop/polarsync/internal/catalog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct{}

// Provide returns the gorm-backed catalog repository.
func Provide() domain.Repository {
	return gormRepository{}
}

func (gormRepository) UpsertProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(product).Error
}

func (gormRepository) UpsertPrice(ctx context.Context, db *gorm.DB, price *domain.Price) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(price).Error
}

func (gormRepository) InsertProductIfMissing(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(product).Error
}

func (gormRepository) InsertPriceIfMissing(ctx context.Context, db *gorm.DB, price *domain.Price) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(price).Error
}

func (gormRepository) FindPrice(ctx context.Context, db *gorm.DB, id string) (*domain.Price, error) {
	var price domain.Price
	err := db.WithContext(ctx).First(&price, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (gormRepository) FindProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}
