package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/studyloop/polarsync/internal/config"
	ingestdomain "github.com/studyloop/polarsync/internal/ingest/domain"
	"github.com/studyloop/polarsync/internal/polar"
	"go.uber.org/zap"
)

type fakeIngest struct {
	err      error
	payloads [][]byte
}

func (f *fakeIngest) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

func newWebhookRouter(t *testing.T, ingest ingestdomain.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		cfg:       config.Config{},
		log:       zap.NewNop(),
		ingestSvc: ingest,
	}
	router := gin.New()
	router.POST("/webhooks/polar", s.PolarWebhook)
	return router
}

func postWebhook(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/polar", strings.NewReader(body))
	router.ServeHTTP(rec, req)
	return rec
}

func TestPolarWebhookAccepted(t *testing.T) {
	ingest := &fakeIngest{}
	router := newWebhookRouter(t, ingest)

	rec := postWebhook(t, router, `{"type":"product.created"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(ingest.payloads) != 1 {
		t.Fatalf("expected one ingestion call, got %d", len(ingest.payloads))
	}
}

func TestPolarWebhookIgnoredStillAcknowledged(t *testing.T) {
	router := newWebhookRouter(t, &fakeIngest{err: ingestdomain.ErrEventIgnored})

	rec := postWebhook(t, router, `{"type":"benefit.created"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ignored events must be acknowledged, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ignored") {
		t.Fatalf("expected ignored status, got %s", rec.Body.String())
	}
}

func TestPolarWebhookDuplicateAcknowledged(t *testing.T) {
	router := newWebhookRouter(t, &fakeIngest{err: ingestdomain.ErrEventAlreadyProcessed})

	rec := postWebhook(t, router, `{"type":"product.created"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicates must be acknowledged, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already_processed") {
		t.Fatalf("expected already_processed status, got %s", rec.Body.String())
	}
}

func TestPolarWebhookSignatureRejected(t *testing.T) {
	router := newWebhookRouter(t, &fakeIngest{err: polar.ErrInvalidSignature})

	rec := postWebhook(t, router, `{}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad signature, got %d", rec.Code)
	}
}

func TestPolarWebhookInvalidPayloadRejected(t *testing.T) {
	router := newWebhookRouter(t, &fakeIngest{err: ingestdomain.ErrInvalidPayload})

	rec := postWebhook(t, router, `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid payload, got %d", rec.Code)
	}
}

func TestPolarWebhookInternalErrorTriggersRedelivery(t *testing.T) {
	router := newWebhookRouter(t, &fakeIngest{err: context.DeadlineExceeded})

	rec := postWebhook(t, router, `{"type":"subscription.updated"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 to trigger redelivery, got %d", rec.Code)
	}
}
