package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ynterhq/gateway/internal/gate"
	"github.com/ynterhq/gateway/internal/observability/logger"
)

type receiptSearchRequest struct {
	Merchant string `json:"merchant"`
	Region   string `json:"region"`
}

// HandleReceiptSearch resolves a receipt's merchant against the
// place-search provider for an entitled caller.
func (s *Server) HandleReceiptSearch(c *gin.Context) {
	var req receiptSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Merchant) == "" {
		AbortWithError(c, newValidationError("merchant", "invalid_merchant", "merchant is required"))
		return
	}

	_, err := s.gate.Admit(c.Request.Context(), gate.Request{
		Credential: bearerCredential(c),
		Operation:  "receipt_search",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.placeProvider.SearchText(c.Request.Context(), req.Merchant+req.Region)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("place search failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}

	c.Data(http.StatusOK, "application/json", result)
}
