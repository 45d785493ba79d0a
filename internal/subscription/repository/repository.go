package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/studyloop/polarsync/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct{}

// Provide returns the gorm-backed user/subscription repository.
func Provide() domain.Repository {
	return gormRepository{}
}

func (gormRepository) FindUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (gormRepository) FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).First(&user, "LOWER(email) = LOWER(?)", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (gormRepository) UpsertUser(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "subscription_status", "current_plan_id", "updated_at",
		}),
	}).Create(user).Error
}

func (gormRepository) UpdateUserStatus(ctx context.Context, db *gorm.DB, userID, status string, planID *string, now time.Time) error {
	return db.WithContext(ctx).
		Table("users").
		Where("id = ?", userID).
		Updates(map[string]any{
			"subscription_status": status,
			"current_plan_id":     planID,
			"updated_at":          now,
		}).Error
}

func (gormRepository) UpsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "polar_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "polar_product_id", "status", "price_id",
			"cancel_at_period_end", "current_period_start", "current_period_end",
			"updated_at",
		}),
	}).Create(sub).Error
	if err != nil && isForeignKeyViolation(err) {
		return domain.ErrPriceReferenceViolation
	}
	return err
}

func (gormRepository) FindByPolarID(ctx context.Context, db *gorm.DB, polarSubscriptionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).First(&sub, "polar_subscription_id = ?", polarSubscriptionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// isForeignKeyViolation matches Postgres class 23503 and the sqlite message
// used by the test databases.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
