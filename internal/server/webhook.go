package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ingestdomain "github.com/studyloop/polarsync/internal/ingest/domain"
	"go.uber.org/zap"
)

const webhookBodyLimit = 1 << 20 // 1 MiB

// PolarWebhook receives billing platform deliveries. Anything the engine
// chose not to handle still gets a 2xx so the platform stops redelivering;
// real failures return 5xx to trigger redelivery.
func (s *Server) PolarWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.ingestSvc.IngestWebhook(c.Request.Context(), payload, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, ingestdomain.ErrEventIgnored):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	case errors.Is(err, ingestdomain.ErrEventAlreadyProcessed):
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
	default:
		s.log.Error("webhook ingestion failed", zap.Error(err))
		AbortWithError(c, err)
	}
}
