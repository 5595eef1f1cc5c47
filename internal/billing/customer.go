package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	entitlementdomain "github.com/ynterhq/gateway/internal/entitlement/domain"
	"github.com/ynterhq/gateway/internal/observability/logger"
)

// CustomerClient creates customers against the billing provider's REST API.
type CustomerClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCustomerClient(baseURL, apiKey string) *CustomerClient {
	return &CustomerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Create registers a customer with the provider and returns its ID. The
// idempotency key dedupes retries of the same signup on the provider side.
func (c *CustomerClient) Create(ctx context.Context, email, idempotencyKey string) (string, error) {
	form := url.Values{}
	form.Set("email", email)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/customers", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("billing: create customer: status %d: %s", resp.StatusCode, string(body))
	}

	var customer struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		return "", err
	}
	if customer.ID == "" {
		return "", fmt.Errorf("billing: create customer: empty id")
	}
	return customer.ID, nil
}

// Registrar provisions a billing customer for a new account and stores the
// mapping. Safe to call again for the same account: the existing customer
// is kept and no second one is created.
type Registrar struct {
	client *CustomerClient
	store  entitlementdomain.Store
}

func NewRegistrar(client *CustomerClient, store entitlementdomain.Store) *Registrar {
	return &Registrar{client: client, store: store}
}

func (r *Registrar) Register(ctx context.Context, accountID, email string) (string, error) {
	log := logger.FromContext(ctx)

	account, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account.CustomerID != "" {
		log.Info("account already has billing customer",
			zap.String("account_id", accountID),
			zap.String("customer_id", account.CustomerID),
		)
		return account.CustomerID, nil
	}

	customerID, err := r.client.Create(ctx, email, accountID)
	if err != nil {
		return "", err
	}

	if err := r.store.AttachCustomer(ctx, accountID, customerID); err != nil {
		return "", err
	}

	log.Info("billing customer created",
		zap.String("account_id", accountID),
		zap.String("customer_id", customerID),
	)
	return customerID, nil
}
