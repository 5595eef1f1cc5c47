package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	bankitemdomain "github.com/ynterhq/gateway/internal/bankitem/domain"
	billingdomain "github.com/ynterhq/gateway/internal/billing/domain"
	entitlementdomain "github.com/ynterhq/gateway/internal/entitlement/domain"
	"github.com/ynterhq/gateway/internal/gate"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Values  map[string]int64  `json:"values,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
	// ErrInstitutionLimit marks the per-customer linked-institution cap.
	ErrInstitutionLimit = errors.New("institution_limit")
)

// ErrorHandlingMiddleware renders the last collected error after the
// handler chain ran, unless a response was already written.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var quotaErr *gate.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "quota_exceeded",
			Message: "monthly quota exceeded",
			Values: map[string]int64{
				"token_used": quotaErr.Used,
				"cost":       quotaErr.Cost,
				"max":        quotaErr.Cap,
			},
		}
	}

	switch {
	case errors.Is(err, gate.ErrUnauthorized),
		errors.Is(err, billingdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, gate.ErrNoEntitlement):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "no_entitlement",
			Message: "no active subscription",
		}
	case errors.Is(err, gate.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limit exceeded",
		}
	case errors.Is(err, ErrInstitutionLimit):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "institution_limit",
			Message: "linked institution limit reached",
		}
	case errors.Is(err, bankitemdomain.ErrNotFound),
		errors.Is(err, entitlementdomain.ErrAccountNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, billingdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func classifyErrorForLog(err error) string {
	_, payload := mapError(err)
	return payload.Type
}
