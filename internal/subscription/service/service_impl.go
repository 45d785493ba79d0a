package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/studyloop/polarsync/internal/authdir"
	catalogdomain "github.com/studyloop/polarsync/internal/catalog/domain"
	"github.com/studyloop/polarsync/internal/clock"
	identitydomain "github.com/studyloop/polarsync/internal/identity/domain"
	"github.com/studyloop/polarsync/internal/observability/metrics"
	"github.com/studyloop/polarsync/internal/polar"
	"github.com/studyloop/polarsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	MappingRepo identitydomain.Repository
	IdentitySvc identitydomain.Service
	CatalogSvc  catalogdomain.Service
	Client      polar.Client
	AuthDir     authdir.Directory
	Clock       clock.Clock
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	mappingRepo identitydomain.Repository
	identitySvc identitydomain.Service
	catalogSvc  catalogdomain.Service
	client      polar.Client
	authDir     authdir.Directory
	clock       clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("subscription.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		mappingRepo: p.MappingRepo,
		identitySvc: p.IdentitySvc,
		catalogSvc:  p.CatalogSvc,
		client:      p.Client,
		authDir:     p.AuthDir,
		clock:       p.Clock,
	}
}

// Reconcile applies one subscription lifecycle event. Every write is an
// upsert keyed on a unique column, so duplicate and concurrent deliveries
// converge instead of duplicating rows.
func (s *Service) Reconcile(ctx context.Context, event *polar.SubscriptionEvent) error {
	if event == nil {
		return polar.ErrInvalidEnvelope
	}
	if err := event.Validate(); err != nil {
		return err
	}
	hints := event.Customer.Hints()
	log := s.log.With(
		zap.String("polar_subscription_id", event.ID),
		zap.String("polar_customer_id", hints.RemoteID),
	)

	userID, err := s.resolveLocalUser(ctx, hints)
	if err != nil {
		return err
	}

	// Guarantee the mapping row exists and still points at a live remote
	// customer before anything references the user.
	if _, err := s.identitySvc.ResolveOrCreateCustomer(ctx, userID, hints.Email); err != nil {
		return err
	}
	mapping, err := s.mappingRepo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if mapping != nil && hints.RemoteID != "" && mapping.PolarCustomerID != hints.RemoteID {
		log.Warn("event customer id differs from stored mapping",
			zap.String("mapped_customer_id", mapping.PolarCustomerID),
		)
	}

	priceID := s.ensurePriceReference(ctx, event, log)

	now := s.clock.Now()
	email, err := s.resolveEmail(ctx, userID, hints.Email, log)
	if err != nil {
		return err
	}

	var planID *string
	if productID := event.ProductID(); productID != "" {
		planID = &productID
	}

	// User first: dependents must always find a user row before a
	// subscription row referencing it exists.
	if err := s.repo.UpsertUser(ctx, s.db, &domain.User{
		ID:                 userID,
		Email:              email,
		SubscriptionStatus: event.Status,
		CurrentPlanID:      planID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}); err != nil {
		return err
	}

	sub := &domain.Subscription{
		ID:                  s.genID.Generate(),
		UserID:              userID,
		PolarSubscriptionID: event.ID,
		PolarProductID:      event.ProductID(),
		Status:              event.Status,
		PriceID:             priceID,
		CancelAtPeriodEnd:   event.CancelAtPeriodEnd,
		CurrentPeriodStart:  event.CurrentPeriodStart,
		CurrentPeriodEnd:    event.CurrentPeriodEnd,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	err = s.repo.UpsertSubscription(ctx, s.db, sub)
	if errors.Is(err, domain.ErrPriceReferenceViolation) && sub.PriceID != nil {
		// The existence check passed but the write still hit the price
		// foreign key (concurrent removal, or validation the check did
		// not see). Retry exactly once without the reference.
		log.Warn("price reference rejected on write, retrying with null price",
			zap.String("price_id", *sub.PriceID),
		)
		metrics.Ingest().IncPriceFallback()
		sub.PriceID = nil
		err = s.repo.UpsertSubscription(ctx, s.db, sub)
	}
	if err != nil {
		return err
	}

	if err := s.repo.UpdateUserStatus(ctx, s.db, userID, event.Status, planID, s.clock.Now()); err != nil {
		return err
	}

	log.Info("subscription reconciled",
		zap.String("user_id", userID),
		zap.String("status", event.Status),
	)
	return nil
}

// resolveLocalUser walks the identity fallback chain: stored mapping,
// metadata hint, external reference, a live customer fetch, then email
// search locally and in the auth directory. Misses are normal control flow;
// only exhausting the chain is an error.
func (s *Service) resolveLocalUser(ctx context.Context, hints polar.CustomerHints) (string, error) {
	mapping, err := s.mappingRepo.FindByRemoteID(ctx, s.db, hints.RemoteID)
	if err != nil {
		return "", err
	}
	if mapping != nil {
		return mapping.UserID, nil
	}

	if hints.UserID != "" {
		return hints.UserID, nil
	}
	if hints.ExternalID != "" {
		return hints.ExternalID, nil
	}

	remote, err := s.client.GetCustomer(ctx, hints.RemoteID)
	if err != nil && !errors.Is(err, polar.ErrCustomerNotFound) {
		return "", err
	}
	if remote != nil {
		live := polar.HintsFromCustomer(remote)
		if live.UserID != "" {
			return live.UserID, nil
		}
		if live.ExternalID != "" {
			return live.ExternalID, nil
		}
		if hints.Email == "" {
			hints.Email = live.Email
		}
	}

	if hints.Email != "" {
		user, err := s.repo.FindUserByEmail(ctx, s.db, hints.Email)
		if err != nil {
			return "", err
		}
		if user != nil {
			return user.ID, nil
		}

		authUser, err := s.authDir.FindUserByEmail(ctx, hints.Email)
		if err != nil && !errors.Is(err, authdir.ErrUserNotFound) {
			return "", err
		}
		if authUser != nil {
			return authUser.ID, nil
		}
	}

	s.log.Error("no fallback resolved the remote customer to a local user",
		zap.String("polar_customer_id", hints.RemoteID),
	)
	return "", domain.ErrUnresolvableIdentity
}

// ensurePriceReference returns the price id the subscription row should
// reference, repairing the catalog from event snapshots when needed. A
// missing or unrepairable price degrades to a null reference: subscription
// status availability outranks a complete price link.
func (s *Service) ensurePriceReference(ctx context.Context, event *polar.SubscriptionEvent, log *zap.Logger) *string {
	snapshot := event.PriceSnapshotForSync()
	if snapshot == nil {
		return nil
	}
	priceID := snapshot.ID

	exists, err := s.catalogSvc.PriceExists(ctx, priceID)
	if err != nil {
		log.Warn("price existence check failed, proceeding without price reference", zap.Error(err))
		metrics.Ingest().IncPriceFallback()
		return nil
	}
	if exists {
		return &priceID
	}

	if event.Product == nil {
		log.Warn("subscription references unknown price and carries no product snapshot",
			zap.String("price_id", priceID),
		)
		metrics.Ingest().IncPriceFallback()
		return nil
	}
	if err := s.catalogSvc.RepairPrice(ctx, *event.Product, *snapshot); err != nil {
		log.Warn("price repair failed, proceeding without price reference",
			zap.String("price_id", priceID),
			zap.Error(err),
		)
		metrics.Ingest().IncPriceFallback()
		return nil
	}
	return &priceID
}

// resolveEmail picks the user email: event payload, stored profile, auth
// directory, then a generated placeholder as last resort.
func (s *Service) resolveEmail(ctx context.Context, userID, eventEmail string, log *zap.Logger) (string, error) {
	if email := strings.TrimSpace(eventEmail); email != "" {
		return email, nil
	}

	user, err := s.repo.FindUser(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if user != nil && strings.TrimSpace(user.Email) != "" {
		return user.Email, nil
	}

	authUser, err := s.authDir.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, authdir.ErrUserNotFound) {
		return "", err
	}
	if authUser != nil && strings.TrimSpace(authUser.Email) != "" {
		return authUser.Email, nil
	}

	placeholder := fmt.Sprintf("%s@placeholder.invalid", userID)
	log.Warn("no email available for user, storing placeholder",
		zap.String("user_id", userID),
	)
	return placeholder, nil
}
