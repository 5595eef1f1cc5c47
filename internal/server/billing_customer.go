package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ynterhq/gateway/internal/gate"
)

type billingCustomerRequest struct {
	Record struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"record"`
}

// HandleBillingCustomer provisions a billing customer for a freshly
// created account. The caller is the signup pipeline, authenticated by a
// shared key; calling it twice for the same account is a no-op.
func (s *Server) HandleBillingCustomer(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader("Authorization"))
	if s.cfg.Billing.SignupKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.Billing.SignupKey)) != 1 {
		AbortWithError(c, gate.ErrUnauthorized)
		return
	}

	var req billingCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.Record.ID == "" || req.Record.Email == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID, err := s.registrar.Register(c.Request.Context(), req.Record.ID, req.Record.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"customer_id": customerID})
}
