package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/studyloop/polarsync/internal/cache"
	"github.com/studyloop/polarsync/internal/clock"
	"github.com/studyloop/polarsync/internal/identity/domain"
	"github.com/studyloop/polarsync/internal/polar"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const remoteIDCacheTTL = 10 * time.Minute

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
	Client polar.Client
	Clock  clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	client   polar.Client
	clock    clock.Clock
	verified cache.Cache[string, bool]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("identity.service"),
		repo:     p.Repo,
		client:   p.Client,
		clock:    p.Clock,
		verified: cache.NewTTLCache[string, bool](),
	}
}

// ResolveOrCreateCustomer implements the ordered fallback chain. There is no
// in-process lock around the lookup/create sequence: two concurrent calls
// for a brand-new user can both pass the mapping-absent check, and the
// platform's uniqueness constraints surface a conflict the recovery path
// converges on.
func (s *Service) ResolveOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.ErrInvalidUserID
	}
	email = strings.TrimSpace(email)

	mapping, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if mapping != nil && strings.TrimSpace(mapping.PolarCustomerID) != "" {
		valid, err := s.remoteIDResolves(ctx, mapping.PolarCustomerID)
		if err != nil {
			return "", err
		}
		if valid {
			return mapping.PolarCustomerID, nil
		}
		s.log.Warn("stored remote customer id no longer resolves",
			zap.String("user_id", userID),
			zap.String("polar_customer_id", mapping.PolarCustomerID),
		)
	}

	remote, err := s.client.GetCustomerByExternalID(ctx, userID)
	if err == nil {
		return s.adopt(ctx, userID, remote.ID)
	}
	if !errors.Is(err, polar.ErrCustomerNotFound) {
		return "", err
	}

	created, err := s.client.CreateCustomer(ctx, polar.CreateCustomerParams{
		Email:      email,
		ExternalID: userID,
		Metadata:   map[string]any{"user_id": userID},
	})
	if err == nil {
		return s.adopt(ctx, userID, created.ID)
	}
	if !errors.Is(err, polar.ErrCustomerConflict) {
		return "", err
	}

	// A racing call (or an earlier client) already registered this user's
	// email or external reference. Recover the id it created.
	remote, err = s.client.GetCustomerByExternalID(ctx, userID)
	if err != nil {
		if errors.Is(err, polar.ErrCustomerNotFound) {
			s.log.Error("customer creation conflicted but external reference search found nothing",
				zap.String("user_id", userID),
			)
			return "", domain.ErrAmbiguousIdentity
		}
		return "", err
	}
	return s.adopt(ctx, userID, remote.ID)
}

// adopt persists the mapping before returning the remote id.
func (s *Service) adopt(ctx context.Context, userID, remoteID string) (string, error) {
	now := s.clock.Now()
	mapping := &domain.CustomerMapping{
		UserID:          userID,
		PolarCustomerID: remoteID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Upsert(ctx, s.db, mapping); err != nil {
		return "", err
	}
	s.verified.Set(remoteID, true, remoteIDCacheTTL)
	return remoteID, nil
}

// remoteIDResolves checks the stored id against the platform. Only positive
// results are cached; a platform-side invalidation is rechecked every call.
func (s *Service) remoteIDResolves(ctx context.Context, remoteID string) (bool, error) {
	if ok, hit := s.verified.Get(remoteID); hit && ok {
		return true, nil
	}
	_, err := s.client.GetCustomer(ctx, remoteID)
	if err == nil {
		s.verified.Set(remoteID, true, remoteIDCacheTTL)
		return true, nil
	}
	if errors.Is(err, polar.ErrCustomerNotFound) {
		return false, nil
	}
	return false, err
}
