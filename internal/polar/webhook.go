package polar

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const signatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing_signature")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrStaleTimestamp   = errors.New("stale_timestamp")
)

// VerifyWebhook checks the standard-webhooks HMAC signature the platform
// attaches to every delivery and returns the delivery id on success. The
// delivery id doubles as the dedupe key for ingestion.
func VerifyWebhook(payload []byte, headers http.Header, secret string, now time.Time) (string, error) {
	id := strings.TrimSpace(headers.Get("webhook-id"))
	timestamp := strings.TrimSpace(headers.Get("webhook-timestamp"))
	signatures := strings.TrimSpace(headers.Get("webhook-signature"))
	if id == "" || timestamp == "" || signatures == "" {
		return "", ErrMissingSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return "", ErrInvalidSignature
	}
	sent := time.Unix(unix, 0)
	if sent.Before(now.Add(-signatureTolerance)) || sent.After(now.Add(signatureTolerance)) {
		return "", ErrStaleTimestamp
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	// The header may carry several space-delimited "v1,<base64>" entries
	// after a secret rotation; any match accepts the delivery.
	for _, candidate := range strings.Fields(signatures) {
		value, ok := strings.CutPrefix(candidate, "v1,")
		if !ok {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return id, nil
		}
	}
	return "", ErrInvalidSignature
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrInvalidSignature
	}
	trimmed := strings.TrimPrefix(secret, "whsec_")
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return decoded, nil
	}
	return []byte(trimmed), nil
}
