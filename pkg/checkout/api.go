package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jordanlanch/storefront/pkg/catalog"
	"github.com/jordanlanch/storefront/pkg/domain"
	"github.com/jordanlanch/storefront/pkg/models"
)

// Orchestrator is the server side of a checkout attempt.
type Orchestrator interface {
	CreateSubscription(ctx context.Context, req *models.CreateSubscriptionRequest, idempotencyKey string) (*models.SubscriptionResource, error)
	Finalizer
}

// Finalizer confirms a subscription once any payment challenge has been handled.
type Finalizer interface {
	ConfirmSubscription(ctx context.Context, subscriptionID string) (*models.SubscriptionResource, error)
}

// ServiceError is an error body returned by the storefront server.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("storefront: %d %s", e.StatusCode, e.Message)
}

// APIClient talks to the storefront HTTP API.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient creates a client for the server at baseURL.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Setup fetches the public key, catalog and discount policy.
func (c *APIClient) Setup(ctx context.Context) (*models.SetupResponse, error) {
	var out models.SetupResponse
	if err := c.do(ctx, http.MethodGet, "/setup-page", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSubscription implements Orchestrator.
func (c *APIClient) CreateSubscription(ctx context.Context, req *models.CreateSubscriptionRequest, idempotencyKey string) (*models.SubscriptionResource, error) {
	var res models.SubscriptionResource
	if err := c.do(ctx, http.MethodPost, "/create-customer", req, idempotencyKey, &res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, domain.NewUnexpectedResponseError(err)
	}
	return &res, nil
}

// ConfirmSubscription implements Finalizer.
func (c *APIClient) ConfirmSubscription(ctx context.Context, subscriptionID string) (*models.SubscriptionResource, error) {
	var res models.SubscriptionResource
	body := &models.ConfirmSubscriptionRequest{SubscriptionID: subscriptionID}
	if err := c.do(ctx, http.MethodPost, "/subscription", body, "", &res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, domain.NewUnexpectedResponseError(err)
	}
	return &res, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, in any, idempotencyKey string, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb models.ErrorResponse
		if json.Unmarshal(data, &eb) == nil && eb.Error.Message != "" {
			return &ServiceError{StatusCode: resp.StatusCode, Code: eb.Error.Code, Message: eb.Error.Message}
		}
		return &ServiceError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewUnexpectedResponseError(err)
	}
	return nil
}

// CatalogFromSetup builds the client-side catalog from the setup payload. The policy is used
// for display only; the server decides the coupon.
func CatalogFromSetup(setup *models.SetupResponse) (*catalog.Catalog, error) {
	if setup == nil {
		return nil, domain.NewUnexpectedResponseError(fmt.Errorf("setup payload is missing"))
	}
	items := make([]catalog.Item, 0, len(setup.Products))
	for _, p := range setup.Products {
		items = append(items, catalog.Item{
			ID:           p.Price.ID,
			Title:        p.Title,
			UnitAmount:   p.Price.UnitAmount,
			DisplayAsset: p.Emoji,
		})
	}
	policy := catalog.DiscountPolicy{
		MinQualifyingCount: setup.MinProductsForDiscount,
		Rate:               setup.DiscountRate,
	}
	cat, err := catalog.New(items, policy, setup.PublicKey)
	if err != nil {
		return nil, domain.NewUnexpectedResponseError(err)
	}
	return cat, nil
}
