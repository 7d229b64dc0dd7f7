package server

import (
	"errors"
	"io"
	"net/http"

	webhookdomain "github.com/Arnzyy/AIFANS-sub001/internal/webhook/domain"
	webhookservice "github.com/Arnzyy/AIFANS-sub001/internal/webhook/service"
	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps how much of a notification we are willing to read.
const maxWebhookBody = 1 << 20

func (s *Server) handleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		abort(c, webhookdomain.ErrInvalidPayload)
		return
	}

	err = s.webhook.Ingest(c.Request.Context(), payload, c.GetHeader(webhookservice.SignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, webhookdomain.ErrEventAlreadyProcessed):
		// Duplicate delivery. Acknowledge so the processor stops retrying.
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
	default:
		abort(c, err)
	}
}
