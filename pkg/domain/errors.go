package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a checkout error with a code, a user-safe message and an optional
// internal cause. Only Message is ever shown to buyers.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// PublicMessage returns the text that may be rendered to a buyer.
func (e *DomainError) PublicMessage() string {
	return e.Message
}

// Error codes
const (
	ErrCodeTokenizationDeclined = "TOKENIZATION_DECLINED"
	ErrCodeCreationFailed       = "CREATION_FAILED"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeUnexpectedResponse   = "UNEXPECTED_RESPONSE"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// Error constructors

// NewTokenizationDeclinedError wraps the payment network's decline reason.
func NewTokenizationDeclinedError(reason string, err error) error {
	return &DomainError{
		Code:    ErrCodeTokenizationDeclined,
		Message: reason,
		Err:     err,
	}
}

// NewCreationFailedError carries the billing provider's human-readable message verbatim.
func NewCreationFailedError(msg string, err error) error {
	return &DomainError{
		Code:    ErrCodeCreationFailed,
		Message: msg,
		Err:     err,
	}
}

// NewAuthenticationFailedError reports a declined or abandoned authentication challenge.
func NewAuthenticationFailedError(msg string, err error) error {
	return &DomainError{
		Code:    ErrCodeAuthenticationFailed,
		Message: msg,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewUnexpectedResponseError reports a collaborator payload that failed shape validation.
func NewUnexpectedResponseError(err error) error {
	return &DomainError{
		Code:    ErrCodeUnexpectedResponse,
		Message: "Unexpected response from the billing provider",
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// Helper functions to check error types

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsTokenizationDeclined checks if the error is a card decline
func IsTokenizationDeclined(err error) bool {
	return hasCode(err, ErrCodeTokenizationDeclined)
}

// IsCreationFailed checks if the error is a customer or subscription creation failure
func IsCreationFailed(err error) bool {
	return hasCode(err, ErrCodeCreationFailed)
}

// IsAuthenticationFailed checks if the error is a failed authentication challenge
func IsAuthenticationFailed(err error) bool {
	return hasCode(err, ErrCodeAuthenticationFailed)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsUnexpectedResponse checks if the error is a malformed collaborator payload
func IsUnexpectedResponse(err error) bool {
	return hasCode(err, ErrCodeUnexpectedResponse)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}

// PublicMessage returns the buyer-safe message for err. Anything that is not a DomainError
// collapses to the generic internal message so raw error text never reaches a buyer.
func PublicMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.PublicMessage()
	}
	return "An internal error occurred"
}
