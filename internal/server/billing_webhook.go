package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/ynterhq/gateway/internal/billing/domain"
)

// HandleBillingWebhook verifies the provider signature over the raw body
// and hands the event to the reconciler. Benign conditions ack with 200 so
// the provider stops retrying; only a bad signature or a store failure on a
// recognized event is surfaced.
func (s *Server) HandleBillingWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.sigVerifier.Verify(payload, c.GetHeader("Stripe-Signature")); err != nil {
		AbortWithError(c, billingdomain.ErrInvalidSignature)
		return
	}

	if err := s.reconciler.Apply(c.Request.Context(), payload); err != nil {
		if errors.Is(err, billingdomain.ErrInvalidPayload) {
			AbortWithError(c, err)
			return
		}
		AbortWithError(c, ErrInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
