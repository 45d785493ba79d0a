package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/studyloop/polarsync/internal/catalog/domain"
	"github.com/studyloop/polarsync/internal/clock"
	"github.com/studyloop/polarsync/internal/config"
	"github.com/studyloop/polarsync/internal/events"
	"github.com/studyloop/polarsync/internal/ingest/domain"
	"github.com/studyloop/polarsync/internal/observability/metrics"
	"github.com/studyloop/polarsync/internal/polar"
	subscriptiondomain "github.com/studyloop/polarsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Repo            domain.Repository
	CatalogSvc      catalogdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	Outbox          *events.Outbox
	Cfg             config.Config
	Clock           clock.Clock
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            domain.Repository
	catalogSvc      catalogdomain.Service
	subscriptionSvc subscriptiondomain.Service
	outbox          *events.Outbox
	secret          string
	clock           clock.Clock
	metrics         *metrics.IngestMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("ingest.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		catalogSvc:      p.CatalogSvc,
		subscriptionSvc: p.SubscriptionSvc,
		outbox:          p.Outbox,
		secret:          p.Cfg.PolarWebhookSecret,
		clock:           p.Clock,
		metrics: metrics.IngestWithConfig(metrics.Config{
			ServiceName: p.Cfg.ServiceName,
			Environment: p.Cfg.Environment,
		}),
	}
}

// IngestWebhook verifies, records, and dispatches one delivery. The stored
// event row makes redelivery of an already-processed event a cheap no-op;
// a failed dispatch leaves the row unprocessed so the platform's redelivery
// gets another attempt.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	start := time.Now()
	eventType, err := s.ingest(ctx, payload, headers)
	s.metrics.ObserveIngestDuration(eventType, time.Since(start))
	s.metrics.IncWebhookEvent(ingestResult(err))
	return err
}

func (s *Service) ingest(ctx context.Context, payload []byte, headers http.Header) (string, error) {
	deliveryID, err := polar.VerifyWebhook(payload, headers, s.secret, s.clock.Now())
	if err != nil {
		return "unknown", err
	}
	if !json.Valid(payload) {
		return "unknown", domain.ErrInvalidPayload
	}

	env, err := polar.ParseEnvelope(payload)
	if err != nil {
		return "unknown", domain.ErrInvalidPayload
	}
	if !env.IsProductEvent() && !env.IsSubscriptionEvent() {
		s.log.Debug("ignoring webhook event type", zap.String("event_type", env.Type))
		return env.Type, domain.ErrEventIgnored
	}

	now := s.clock.Now()
	received := domain.EventRecord{
		ID:              s.genID.Generate(),
		ProviderEventID: deliveryID,
		EventType:       env.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return env.Type, err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, deliveryID)
		if err != nil {
			return env.Type, err
		}
		if stored == nil {
			return env.Type, domain.ErrInvalidPayload
		}
		if stored.ProcessedAt != nil {
			return env.Type, domain.ErrEventAlreadyProcessed
		}
	}

	outboxEvent, err := s.dispatch(ctx, env)
	if err != nil {
		return env.Type, err
	}

	// The outbox row and the processed mark commit together: a failure on
	// either leaves the event unprocessed for redelivery.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.outbox.PublishTx(ctx, tx, outboxEvent); err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, stored.ID, s.clock.Now())
	})
	if err != nil {
		return env.Type, err
	}
	return env.Type, nil
}

func ingestResult(err error) string {
	switch {
	case err == nil:
		return "processed"
	case errors.Is(err, domain.ErrEventAlreadyProcessed):
		return "duplicate"
	case errors.Is(err, domain.ErrEventIgnored):
		return "ignored"
	case errors.Is(err, polar.ErrMissingSignature),
		errors.Is(err, polar.ErrInvalidSignature),
		errors.Is(err, polar.ErrStaleTimestamp):
		return "rejected"
	default:
		return "failed"
	}
}

// dispatch applies the event and returns the outbox event announcing it.
func (s *Service) dispatch(ctx context.Context, env *polar.Envelope) (events.Event, error) {
	switch {
	case env.IsProductEvent():
		event, err := polar.ParseProductEvent(env.Data)
		if err != nil {
			return events.Event{}, err
		}
		if err := s.catalogSvc.UpsertCatalog(ctx, event); err != nil {
			return events.Event{}, err
		}
		return events.Event{
			Type:      events.EventCatalogSynced,
			Payload:   events.CatalogSyncedPayload{PolarProductID: event.ID}.ToMap(),
			DedupeKey: env.Type + ":" + event.ID,
		}, nil

	case env.IsSubscriptionEvent():
		event, err := polar.ParseSubscriptionEvent(env.Data)
		if err != nil {
			return events.Event{}, err
		}
		if err := s.subscriptionSvc.Reconcile(ctx, event); err != nil {
			return events.Event{}, err
		}
		return events.Event{
			Type: events.EventSubscriptionSynced,
			Payload: events.SubscriptionSyncedPayload{
				PolarSubscriptionID: event.ID,
				Status:              event.Status,
			}.ToMap(),
			DedupeKey: env.Type + ":" + event.ID + ":" + event.Status,
		}, nil
	}
	return events.Event{}, domain.ErrEventIgnored
}
