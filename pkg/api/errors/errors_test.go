package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/storefront/pkg/domain"
	"github.com/jordanlanch/storefront/pkg/models"
)

// newContext creates an echo.Context backed by an httptest.NewRecorder for the
// given HTTP method and path.
func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// captureLog redirects the standard logger to a buffer for the duration of fn
func captureLog(fn func()) string {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

func TestValidationError(t *testing.T) {
	internalMsg := "Key: 'CreateSubscriptionRequest.Email' Error:Field validation for 'Email' failed"
	c, rec := newContext(http.MethodPost, "/create-customer")

	logged := captureLog(func() {
		require.NoError(t, ValidationError(c, errors.New(internalMsg)))
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := parseBody(t, rec)
	assert.Equal(t, domain.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, validationMessage, resp.Error.Message)
	assert.NotContains(t, rec.Body.String(), "Key:")
	assert.Contains(t, logged, "/create-customer")
	assert.Contains(t, logged, internalMsg)
}

func TestInternalError_HidesDetails(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/subscription")
	_ = captureLog(func() {
		_ = InternalError(c, errors.New("pq: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
}

func TestNotFoundError(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/subscription")
	require.NoError(t, NotFoundError(c, "Subscription"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Subscription not found", parseBody(t, rec).Error.Message)
}

func TestDomainError_Mapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", domain.NewValidationError("Unknown price id: price_x"), http.StatusBadRequest, "Unknown price id: price_x"},
		{"creation failed is verbatim", domain.NewCreationFailedError("Your card has insufficient funds.", nil), http.StatusPaymentRequired, "Your card has insufficient funds."},
		{"not found", domain.NewNotFoundError("Subscription"), http.StatusNotFound, "Subscription not found"},
		{"unexpected response", domain.NewUnexpectedResponseError(errors.New("missing id")), http.StatusBadGateway, "Unexpected response from the billing provider"},
		{"internal", domain.NewInternalError(errors.New("dial tcp 10.0.0.1:443")), http.StatusInternalServerError, internalMessage},
		{"plain error", errors.New("secret detail"), http.StatusInternalServerError, internalMessage},
		{"wrapped domain error", fmt.Errorf("create: %w", domain.NewNotFoundError("Subscription")), http.StatusNotFound, "Subscription not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodPost, "/create-customer")
			_ = captureLog(func() {
				require.NoError(t, DomainError(c, tt.err))
			})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, parseBody(t, rec).Error.Message)
			assert.NotContains(t, rec.Body.String(), "10.0.0.1")
			assert.NotContains(t, rec.Body.String(), "secret detail")
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, StatusFor(domain.ErrCodeAuthenticationFailed))
	assert.Equal(t, http.StatusPaymentRequired, StatusFor(domain.ErrCodeTokenizationDeclined))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("SOMETHING_NEW"))
}
