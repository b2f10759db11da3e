package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/storefront/pkg/domain"
	"github.com/jordanlanch/storefront/pkg/models"
)

func TestAPIClient_CreateSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/create-customer", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var req models.CreateSubscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.PriceIDs)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sub_1","status":"incomplete","latest_invoice":{"id":"in_1","payment_intent":{"id":"pi_1","status":"requires_action","client_secret":"pi_1_secret_x"}}}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", time.Second)
	res, err := c.CreateSubscription(context.Background(), &models.CreateSubscriptionRequest{
		Email: "buyer@example.com", PaymentMethod: "pm_1", PriceIDs: []string{"a", "b"},
	}, "key-1")
	require.NoError(t, err)
	assert.True(t, res.RequiresAuthentication())
	assert.Equal(t, "pi_1_secret_x", res.ChallengeSecret())
}

func TestAPIClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"X","code":"CREATION_FAILED"}}`))
	}))
	defer srv.Close()

	_, err := NewAPIClient(srv.URL, time.Second).CreateSubscription(context.Background(), &models.CreateSubscriptionRequest{}, "")
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusPaymentRequired, se.StatusCode)
	assert.Equal(t, "X", se.Message)
	assert.Equal(t, "CREATION_FAILED", se.Code)
}

func TestAPIClient_UnexpectedShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing status", http.StatusOK, `{"id":"sub_1"}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewAPIClient(srv.URL, time.Second).ConfirmSubscription(context.Background(), "sub_1")
			assert.True(t, domain.IsUnexpectedResponse(err))
		})
	}
}

func TestAPIClient_ErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPIClient(srv.URL, time.Second).ConfirmSubscription(context.Background(), "sub_1")
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Bad Gateway", se.Message)
}

func TestAPIClient_Setup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/setup-page", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.SetupResponse{
			PublicKey:              "pk_test",
			MinProductsForDiscount: 2,
			DiscountRate:           0.2,
			Products: []models.SetupProduct{
				{Price: models.SetupPrice{ID: "a", UnitAmount: 500}, Title: "Hamster"},
			},
		})
	}))
	defer srv.Close()

	setup, err := NewAPIClient(srv.URL, time.Second).Setup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pk_test", setup.PublicKey)
	assert.Equal(t, 2, setup.MinProductsForDiscount)
	require.Len(t, setup.Products, 1)
}

func TestCatalogFromSetup(t *testing.T) {
	cat, err := CatalogFromSetup(&models.SetupResponse{
		PublicKey:              "pk_test",
		MinProductsForDiscount: 2,
		DiscountRate:           0.2,
		Products: []models.SetupProduct{
			{Price: models.SetupPrice{ID: "a", UnitAmount: 500}, Title: "Hamster", Emoji: "🐹"},
			{Price: models.SetupPrice{ID: "b", UnitAmount: 700}, Title: "Piglet", Emoji: "🐷"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
	item, ok := cat.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "🐹", item.DisplayAsset)
	assert.True(t, cat.Policy().Eligible(2))

	_, err = CatalogFromSetup(&models.SetupResponse{DiscountRate: 2})
	assert.True(t, domain.IsUnexpectedResponse(err))
	_, err = CatalogFromSetup(nil)
	assert.True(t, domain.IsUnexpectedResponse(err))
}
