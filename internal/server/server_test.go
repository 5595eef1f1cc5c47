package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ynterhq/gateway/internal/auth"
	bankitemdomain "github.com/ynterhq/gateway/internal/bankitem/domain"
	bankitemrepo "github.com/ynterhq/gateway/internal/bankitem/repository"
	"github.com/ynterhq/gateway/internal/billing"
	"github.com/ynterhq/gateway/internal/config"
	entitlementdomain "github.com/ynterhq/gateway/internal/entitlement/domain"
	entitlementrepo "github.com/ynterhq/gateway/internal/entitlement/repository"
	"github.com/ynterhq/gateway/internal/gate"
	"github.com/ynterhq/gateway/internal/providers/bankdata"
	"github.com/ynterhq/gateway/internal/providers/chat"
	"github.com/ynterhq/gateway/internal/ratelimit"
	"github.com/ynterhq/gateway/internal/tokencount"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// -- Fakes --

type fakeVerifier struct {
	identity *auth.Identity
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, credential string) (*auth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(ctx context.Context, operation, identity string, policy ratelimit.Policy) (bool, error) {
	return true, nil
}

type fakeChatProvider struct {
	lastReq chat.CompletionRequest
	status  int
	body    string
}

func (f *fakeChatProvider) Complete(ctx context.Context, req chat.CompletionRequest) (*http.Response, error) {
	f.lastReq = req
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func (f *fakeChatProvider) Model() string  { return "gpt-4o-mini" }
func (f *fakeChatProvider) MaxTokens() int { return 2000 }

type fakeBankProvider struct {
	lastLinkReq   bankdata.LinkTokenRequest
	removedTokens []string
	syncCursor    string
}

func (f *fakeBankProvider) CreateLinkToken(ctx context.Context, req bankdata.LinkTokenRequest) (string, error) {
	f.lastLinkReq = req
	return "link-token-1", nil
}

func (f *fakeBankProvider) ExchangePublicToken(ctx context.Context, publicToken string) (*bankdata.ExchangeResult, error) {
	return &bankdata.ExchangeResult{ItemID: "item_1", AccessToken: "access-1"}, nil
}

func (f *fakeBankProvider) GetInstitutionID(ctx context.Context, accessToken string) (string, error) {
	return "ins_1", nil
}

func (f *fakeBankProvider) GetInstitutionName(ctx context.Context, institutionID string, countryCodes []string) (string, error) {
	return "Test Bank", nil
}

func (f *fakeBankProvider) TransactionsSync(ctx context.Context, accessToken, cursor string) (json.RawMessage, error) {
	f.syncCursor = cursor
	return json.RawMessage(`{"added":[],"has_more":false,"next_cursor":"c2"}`), nil
}

func (f *fakeBankProvider) RemoveItem(ctx context.Context, accessToken string) error {
	f.removedTokens = append(f.removedTokens, accessToken)
	return nil
}

type fakePlaceProvider struct{}

func (fakePlaceProvider) SearchText(ctx context.Context, query string) (json.RawMessage, error) {
	return json.RawMessage(`{"places":[{"displayName":{"text":"` + query + `"}}]}`), nil
}

// -- Harness --

type harness struct {
	server   *Server
	conn     *gorm.DB
	verifier *fakeVerifier
	chat     *fakeChatProvider
	bank     *fakeBankProvider
	store    entitlementdomain.Store
	items    bankitemdomain.Repository
	cfg      config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&entitlementdomain.Account{},
		&entitlementdomain.Subscription{},
		&entitlementdomain.Payment{},
		&bankitemdomain.BankItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	store := entitlementrepo.Provide(conn, node)
	items := bankitemrepo.Provide(conn)

	verifier := &fakeVerifier{identity: &auth.Identity{UserID: "user_1"}}
	plans := config.NewStaticPlanConfigHolder(config.PlanConfig{
		MonthlyTokenCap: 15_000_000,
		Operations: map[string]config.OperationPolicy{
			"chat":           {Limit: 60, Window: time.Minute, FailOpen: true, RequireSubscription: true},
			"receipt_search": {Limit: 60, Window: time.Minute, FailOpen: true, RequireSubscription: true},
			"bank_link":      {Limit: 10, Window: 720 * time.Minute, RequireSubscription: true},
			"bank_exchange":  {Limit: 10, Window: 720 * time.Minute},
			"bank_sync":      {Limit: 15, Window: 60 * time.Minute, RequireSubscription: true},
		},
	})
	g := gate.New(gate.Params{
		Verifier: verifier,
		Store:    store,
		Limiter:  allowAllLimiter{},
		Plans:    plans,
	})

	cfg := config.Config{
		Bank:    config.BankConfig{MaxLinkedIns: 5},
		Billing: config.BillingConfig{WebhookSecret: "whsec_test", SignupKey: "signup-key"},
	}

	chatProvider := &fakeChatProvider{body: `{"ok":true}`}
	bankProvider := &fakeBankProvider{}

	srv := NewServer(ServerParams{
		Gin:           NewEngine(nil),
		Cfg:           cfg,
		Gate:          g,
		Verifier:      verifier,
		Store:         store,
		Counter:       tokencount.NewHeuristic(),
		BankItems:     items,
		ChatProvider:  chatProvider,
		BankProvider:  bankProvider,
		PlaceProvider: fakePlaceProvider{},
		SigVerifier:   billing.NewSignatureVerifier(cfg.Billing.WebhookSecret),
		Reconciler:    billing.NewReconciler(store, nil),
		Registrar:     nil,
	})

	return &harness{
		server:   srv,
		conn:     conn,
		verifier: verifier,
		chat:     chatProvider,
		bank:     bankProvider,
		store:    store,
		items:    items,
		cfg:      cfg,
	}
}

func (h *harness) seedEntitledAccount(t *testing.T, usage int64) {
	t.Helper()
	require.NoError(t, h.conn.Create(&entitlementdomain.Account{
		ID:         "user_1",
		CustomerID: "cus_1",
		Email:      "user@example.com",
	}).Error)
	require.NoError(t, h.conn.Create(&entitlementdomain.Subscription{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		UsageTokens:    usage,
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}).Error)
}

func (h *harness) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.server.Engine().ServeHTTP(w, req)
	return w
}
