package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	identitydomain "github.com/studyloop/polarsync/internal/identity/domain"
	ingestdomain "github.com/studyloop/polarsync/internal/ingest/domain"
	"github.com/studyloop/polarsync/internal/polar"
	subscriptiondomain "github.com/studyloop/polarsync/internal/subscription/domain"
)

var ErrNotFound = errors.New("not_found")

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code }

func invalidRequestError() error {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request"}
}

// AbortWithError translates engine errors into the webhook sender's
// contract: 4xx for deliveries that can never succeed, 5xx for failures the
// platform should redeliver.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, polar.ErrMissingSignature),
		errors.Is(err, polar.ErrInvalidSignature),
		errors.Is(err, polar.ErrStaleTimestamp):
		status, code = http.StatusForbidden, "invalid_signature"
	case errors.Is(err, ingestdomain.ErrInvalidPayload),
		errors.Is(err, polar.ErrInvalidEnvelope),
		errors.Is(err, polar.ErrMissingProductID),
		errors.Is(err, polar.ErrMissingPriceID),
		errors.Is(err, polar.ErrMissingPriceType),
		errors.Is(err, polar.ErrMissingEventID),
		errors.Is(err, polar.ErrMissingStatus),
		errors.Is(err, polar.ErrMissingCustomerID):
		status, code = http.StatusBadRequest, "invalid_payload"
	case errors.Is(err, subscriptiondomain.ErrUnresolvableIdentity):
		code = "unresolvable_identity"
	case errors.Is(err, identitydomain.ErrAmbiguousIdentity):
		code = "ambiguous_identity"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code}})
}
