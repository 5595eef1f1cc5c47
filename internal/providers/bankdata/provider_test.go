package bankdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTP(Config{
		BaseURL:    srv.URL,
		ClientID:   "client-id",
		Secret:     "client-secret",
		ClientName: "Ynter",
	})
}

func TestCreateLinkToken(t *testing.T) {
	var body map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/link/token/create", r.URL.Path)
		assert.Equal(t, "client-id", r.Header.Get("PLAID-CLIENT-ID"))
		assert.Equal(t, "client-secret", r.Header.Get("PLAID-SECRET"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"link_token":"link-1"}`))
	})

	token, err := p.CreateLinkToken(context.Background(), LinkTokenRequest{
		UserID:       "user_1",
		Language:     "pt",
		CountryCodes: []string{"PT"},
	})
	require.NoError(t, err)
	assert.Equal(t, "link-1", token)

	assert.Equal(t, "Ynter", body["client_name"])
	assert.Equal(t, "pt", body["language"])
	assert.NotContains(t, body, "access_token")
}

func TestCreateLinkTokenUpdateMode(t *testing.T) {
	var body map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"link_token":"link-1"}`))
	})

	_, err := p.CreateLinkToken(context.Background(), LinkTokenRequest{
		UserID:      "user_1",
		AccessToken: "access-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-1", body["access_token"])
}

func TestExchangePublicToken(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/public_token/exchange", r.URL.Path)
		w.Write([]byte(`{"item_id":"item-1","access_token":"access-1"}`))
	})

	result, err := p.ExchangePublicToken(context.Background(), "public-1")
	require.NoError(t, err)
	assert.Equal(t, "item-1", result.ItemID)
	assert.Equal(t, "access-1", result.AccessToken)
}

func TestTransactionsSyncOmitsEmptyCursor(t *testing.T) {
	var body map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/sync", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"added":[],"next_cursor":"c1","has_more":false}`))
	})

	page, err := p.TransactionsSync(context.Background(), "access-1", "")
	require.NoError(t, err)
	assert.Contains(t, string(page), "next_cursor")
	assert.NotContains(t, body, "cursor")
}

func TestUpstreamErrorSurfaced(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_code":"INVALID_ACCESS_TOKEN"}`, http.StatusBadRequest)
	})

	err := p.RemoveItem(context.Background(), "access-bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
