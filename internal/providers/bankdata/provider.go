package bankdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider wraps the bank-data aggregator's REST API. Every call is an
// authenticated POST with a JSON body; client credentials ride in headers.
type Provider interface {
	CreateLinkToken(ctx context.Context, req LinkTokenRequest) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error)
	GetInstitutionID(ctx context.Context, accessToken string) (string, error)
	GetInstitutionName(ctx context.Context, institutionID string, countryCodes []string) (string, error)
	TransactionsSync(ctx context.Context, accessToken, cursor string) (json.RawMessage, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

type LinkTokenRequest struct {
	UserID       string
	Language     string
	CountryCodes []string
	// AccessToken switches link-token creation into update mode for an
	// already linked institution.
	AccessToken string
}

type ExchangeResult struct {
	ItemID      string
	AccessToken string
}

type Config struct {
	BaseURL    string
	ClientID   string
	Secret     string
	ClientName string
}

type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

func NewHTTP(cfg Config) *HTTPProvider {
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProvider) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (string, error) {
	body := map[string]any{
		"user":          map[string]string{"client_user_id": req.UserID},
		"products":      []string{"transactions"},
		"client_name":   p.cfg.ClientName,
		"language":      req.Language,
		"country_codes": req.CountryCodes,
	}
	if req.AccessToken != "" {
		body["access_token"] = req.AccessToken
	}

	var resp struct {
		LinkToken string `json:"link_token"`
	}
	if err := p.post(ctx, "/link/token/create", body, &resp); err != nil {
		return "", err
	}
	return resp.LinkToken, nil
}

func (p *HTTPProvider) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	var resp struct {
		ItemID      string `json:"item_id"`
		AccessToken string `json:"access_token"`
	}
	err := p.post(ctx, "/item/public_token/exchange", map[string]string{
		"public_token": publicToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &ExchangeResult{ItemID: resp.ItemID, AccessToken: resp.AccessToken}, nil
}

func (p *HTTPProvider) GetInstitutionID(ctx context.Context, accessToken string) (string, error) {
	var resp struct {
		Item struct {
			InstitutionID string `json:"institution_id"`
		} `json:"item"`
	}
	err := p.post(ctx, "/item/get", map[string]string{
		"access_token": accessToken,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Item.InstitutionID, nil
}

func (p *HTTPProvider) GetInstitutionName(ctx context.Context, institutionID string, countryCodes []string) (string, error) {
	var resp struct {
		Institution struct {
			Name string `json:"name"`
		} `json:"institution"`
	}
	err := p.post(ctx, "/institutions/get_by_id", map[string]any{
		"institution_id": institutionID,
		"country_codes":  countryCodes,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Institution.Name, nil
}

// TransactionsSync returns the aggregator's page verbatim: added, modified,
// removed, next_cursor and has_more pass through untouched.
func (p *HTTPProvider) TransactionsSync(ctx context.Context, accessToken, cursor string) (json.RawMessage, error) {
	body := map[string]any{
		"access_token": accessToken,
	}
	if cursor != "" {
		body["cursor"] = cursor
	}

	var resp json.RawMessage
	if err := p.post(ctx, "/transactions/sync", body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *HTTPProvider) RemoveItem(ctx context.Context, accessToken string) error {
	var resp json.RawMessage
	return p.post(ctx, "/item/remove", map[string]string{
		"access_token": accessToken,
	}, &resp)
}

func (p *HTTPProvider) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PLAID-CLIENT-ID", p.cfg.ClientID)
	req.Header.Set("PLAID-SECRET", p.cfg.Secret)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bankdata: %s: status %d: %s", path, resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
