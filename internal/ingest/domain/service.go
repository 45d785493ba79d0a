package domain

import (
	"context"
	"errors"
	"net/http"
)

// Service ingests billing platform webhook deliveries.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error
}

var (
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
