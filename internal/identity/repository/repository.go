package repository

import (
	"context"
	"errors"

	"github.com/studyloop/polarsync/internal/identity/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct{}

// Provide returns the gorm-backed customer mapping repository.
func Provide() domain.Repository {
	return gormRepository{}
}

func (gormRepository) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.CustomerMapping, error) {
	var mapping domain.CustomerMapping
	err := db.WithContext(ctx).First(&mapping, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (gormRepository) FindByRemoteID(ctx context.Context, db *gorm.DB, remoteID string) (*domain.CustomerMapping, error) {
	var mapping domain.CustomerMapping
	err := db.WithContext(ctx).First(&mapping, "polar_customer_id = ?", remoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (gormRepository) Upsert(ctx context.Context, db *gorm.DB, mapping *domain.CustomerMapping) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"polar_customer_id", "updated_at"}),
	}).Create(mapping).Error
}
