package places

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

// fieldMask limits the search response to the fields the client renders.
var fieldMask = []string{
	"places.displayName",
	"places.websiteUri",
	"places.internationalPhoneNumber",
	"places.formattedAddress",
	"places.rating",
	"places.businessStatus",
	"places.primaryType",
	"places.googleMapsUri",
}

// Provider resolves free-text merchant queries against the place-search API.
type Provider interface {
	SearchText(ctx context.Context, query string) (json.RawMessage, error)
}

type Config struct {
	BaseURL string
	APIKey  string
}

type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

func NewHTTP(cfg Config) *HTTPProvider {
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// SearchText posts the text query and returns the provider's places
// payload verbatim, already trimmed by the field mask.
func (p *HTTPProvider) SearchText(ctx context.Context, query string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"textQuery": query})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", p.cfg.APIKey)
	req.Header.Set("X-Goog-FieldMask", strings.Join(fieldMask, ","))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("places: search: status %d: %s", resp.StatusCode, string(msg))
	}

	var out json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
