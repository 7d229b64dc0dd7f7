package server

import (
	"errors"
	"net/http"

	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	payoutdomain "github.com/Arnzyy/AIFANS-sub001/internal/payout/domain"
	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	"github.com/Arnzyy/AIFANS-sub001/internal/observability/logger"
	webhookdomain "github.com/Arnzyy/AIFANS-sub001/internal/webhook/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorMiddleware turns domain sentinel errors recorded on the context into
// JSON responses. Anything unmapped is a 500 with no detail leaked.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := mapError(err)
		detail := err.Error()
		if status == http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("unhandled request error",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
			detail = "internal error"
		}
		c.JSON(status, gin.H{"error": detail})
	}
}

// abort records err for the error middleware and stops the handler chain.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) int {
	switch {
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, webhookdomain.ErrInvalidPayload),
		errors.Is(err, subscriptiondomain.ErrInvalidEvent),
		errors.Is(err, ledgerdomain.ErrInvalidCreator),
		errors.Is(err, ledgerdomain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, payoutdomain.ErrPayoutNotFound),
		errors.Is(err, ledgerdomain.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, payoutdomain.ErrPayoutsDisabled):
		return http.StatusForbidden
	case errors.Is(err, payoutdomain.ErrBelowMinimum),
		errors.Is(err, payoutdomain.ErrPayoutNotTransitable),
		errors.Is(err, subscriptiondomain.ErrSubscriptionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
