// Package auth resolves caller credentials into identities via the
// external auth service.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrInvalidCredential = errors.New("invalid_credential")

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Verifier resolves a bearer credential into a known identity.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// HTTPVerifier calls the auth service's user-info endpoint.
type HTTPVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPVerifier builds a verifier against the configured auth service.
func NewHTTPVerifier(baseURL, apiKey string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify resolves the credential. An empty or rejected credential maps to
// ErrInvalidCredential; transport failures are returned as-is.
func (v *HTTPVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrInvalidCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidCredential
	default:
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, err
	}
	if identity.UserID == "" {
		return nil, ErrInvalidCredential
	}
	return &identity, nil
}
