package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	bankitemdomain "github.com/ynterhq/gateway/internal/bankitem/domain"
	"github.com/ynterhq/gateway/internal/gate"
	"github.com/ynterhq/gateway/internal/observability/logger"
	"github.com/ynterhq/gateway/internal/providers/bankdata"
)

type bankLinkTokenRequest struct {
	InstitutionID string `json:"institution_id"`
}

// HandleBankLinkToken issues a link token for connecting a new institution,
// or an update-mode token when the institution is already linked.
func (s *Server) HandleBankLinkToken(c *gin.Context) {
	var req bankLinkTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	admission, err := s.gate.Admit(c.Request.Context(), gate.Request{
		Credential: bearerCredential(c),
		Operation:  "bank_link",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	customerID := admission.Account.CustomerID

	var accessToken string
	if req.InstitutionID != "" {
		item, err := s.bankItems.Get(c.Request.Context(), customerID, req.InstitutionID)
		if err != nil && !errors.Is(err, bankitemdomain.ErrNotFound) {
			AbortWithError(c, err)
			return
		}
		if item != nil {
			accessToken = item.AccessToken
		}
	} else {
		count, err := s.bankItems.CountByCustomer(c.Request.Context(), customerID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if count >= int64(s.cfg.Bank.MaxLinkedIns) {
			AbortWithError(c, ErrInstitutionLimit)
			return
		}
	}

	language, region := parseAcceptLanguage(c.GetHeader("Accept-Language"))
	linkToken, err := s.bankProvider.CreateLinkToken(c.Request.Context(), bankdata.LinkTokenRequest{
		UserID:       admission.Identity.UserID,
		Language:     language,
		CountryCodes: []string{region},
		AccessToken:  accessToken,
	})
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("link token create failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}

	resp := gin.H{"link_token": linkToken}
	if accessToken != "" {
		resp["access_token"] = accessToken
	}
	c.JSON(http.StatusOK, resp)
}

type bankExchangeRequest struct {
	PublicToken string `json:"public_token"`
}

// HandleBankExchange trades a public token for a permanent access token
// and records the linked institution. An existing link for the same
// institution is replaced, rotating its stored token.
func (s *Server) HandleBankExchange(c *gin.Context) {
	var req bankExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PublicToken) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	admission, err := s.gate.Admit(c.Request.Context(), gate.Request{
		Credential: bearerCredential(c),
		Operation:  "bank_exchange",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	exchanged, err := s.bankProvider.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		logger.FromContext(ctx).Error("public token exchange failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}

	institutionID, err := s.bankProvider.GetInstitutionID(ctx, exchanged.AccessToken)
	if err != nil {
		logger.FromContext(ctx).Error("institution lookup failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}

	_, region := parseAcceptLanguage(c.GetHeader("Accept-Language"))
	institutionName, err := s.bankProvider.GetInstitutionName(ctx, institutionID, []string{region})
	if err != nil {
		logger.FromContext(ctx).Error("institution name lookup failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}

	if err := s.bankItems.Upsert(ctx, &bankitemdomain.BankItem{
		ItemID:        exchanged.ItemID,
		CustomerID:    admission.Account.CustomerID,
		InstitutionID: institutionID,
		AccessToken:   exchanged.AccessToken,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"institution_id":   institutionID,
		"institution_name": institutionName,
	})
}

type bankSyncRequest struct {
	InstitutionID string `json:"institution_id"`
	Cursor        string `json:"cursor"`
}

// HandleBankTransactionsSync relays one page of the cursor-based
// transaction feed for a linked institution.
func (s *Server) HandleBankTransactionsSync(c *gin.Context) {
	var req bankSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.InstitutionID) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	admission, err := s.gate.Admit(c.Request.Context(), gate.Request{
		Credential: bearerCredential(c),
		Operation:  "bank_sync",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.bankItems.Get(c.Request.Context(), admission.Account.CustomerID, req.InstitutionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	page, err := s.bankProvider.TransactionsSync(c.Request.Context(), item.AccessToken, req.Cursor)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("transactions sync failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": page})
}

type bankRemoveRequest struct {
	InstitutionID string `json:"institution_id"`
}

// HandleBankRemove unlinks an institution: the provider item is revoked
// and the stored token row deleted. Auth only; removal must keep working
// after a subscription lapses.
func (s *Server) HandleBankRemove(c *gin.Context) {
	var req bankRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.InstitutionID) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	identity, err := s.verifier.Verify(ctx, bearerCredential(c))
	if err != nil {
		AbortWithError(c, gate.ErrUnauthorized)
		return
	}

	account, err := s.store.GetAccount(ctx, identity.UserID)
	if err != nil || account.CustomerID == "" {
		AbortWithError(c, gate.ErrNoEntitlement)
		return
	}

	item, err := s.bankItems.Get(ctx, account.CustomerID, req.InstitutionID)
	if err != nil && !errors.Is(err, bankitemdomain.ErrNotFound) {
		AbortWithError(c, err)
		return
	}
	if item != nil && item.AccessToken != "" {
		if err := s.bankProvider.RemoveItem(ctx, item.AccessToken); err != nil {
			logger.FromContext(ctx).Error("item remove failed", zap.Error(err))
			AbortWithError(c, ErrInternal)
			return
		}
	}

	if err := s.bankItems.Delete(ctx, account.CustomerID, req.InstitutionID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusOK)
}
