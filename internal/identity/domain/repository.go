package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*CustomerMapping, error)
	FindByRemoteID(ctx context.Context, db *gorm.DB, remoteID string) (*CustomerMapping, error)
	Upsert(ctx context.Context, db *gorm.DB, mapping *CustomerMapping) error
}
