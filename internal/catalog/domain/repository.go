package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	UpsertProduct(ctx context.Context, db *gorm.DB, product *Product) error
	UpsertPrice(ctx context.Context, db *gorm.DB, price *Price) error
	InsertProductIfMissing(ctx context.Context, db *gorm.DB, product *Product) error
	InsertPriceIfMissing(ctx context.Context, db *gorm.DB, price *Price) error
	FindPrice(ctx context.Context, db *gorm.DB, id string) (*Price, error)
	FindProduct(ctx context.Context, db *gorm.DB, id string) (*Product, error)
}
