package errors

import (
	"log"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/storefront/pkg/domain"
	"github.com/jordanlanch/storefront/pkg/models"
)

const (
	validationMessage = "Invalid request data. Please check your input and try again."
	internalMessage   = "An internal error occurred. Please try again later."
)

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return respond(c, http.StatusBadRequest, domain.ErrCodeValidation, validationMessage)
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
	capture(c, err)

	return respond(c, http.StatusInternalServerError, domain.ErrCodeInternal, internalMessage)
}

// NotFoundError returns a not found error for the named resource
func NotFoundError(c echo.Context, resource string) error {
	return respond(c, http.StatusNotFound, domain.ErrCodeNotFound, resource+" not found")
}

// DomainError maps a domain error to its HTTP status and safe public message.
// Anything that is not a domain error is treated as internal.
func DomainError(c echo.Context, err error) error {
	code := domain.GetErrorCode(err)
	status := StatusFor(code)

	switch {
	case status >= http.StatusInternalServerError:
		log.Printf("[BILLING ERROR] Path: %s, Code: %s, Error: %v", c.Request().URL.Path, code, err)
		capture(c, err)
	default:
		log.Printf("[REQUEST ERROR] Path: %s, Code: %s, Error: %v", c.Request().URL.Path, code, err)
	}

	message := domain.PublicMessage(err)
	if code == domain.ErrCodeInternal {
		message = internalMessage
	}
	return respond(c, status, code, message)
}

// StatusFor returns the HTTP status used for a domain error code.
func StatusFor(code string) int {
	switch code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeCreationFailed, domain.ErrCodeTokenizationDeclined, domain.ErrCodeAuthenticationFailed:
		return http.StatusPaymentRequired
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUnexpectedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(c echo.Context, status int, code, message string) error {
	return c.JSON(status, models.ErrorResponse{
		Error: models.ErrorBody{Message: message, Code: code},
	})
}

func capture(c echo.Context, err error) {
	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("path", c.Path())
			hub.CaptureException(err)
		})
	}
}
