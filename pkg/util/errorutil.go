package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Stable error kinds surfaced to clients.
const (
	KindInvalidCredentials   = "invalid_credentials"
	KindMissingToken         = "missing_token"
	KindInvalidToken         = "invalid_token"
	KindInvalidSignature     = "invalid_signature"
	KindExpired              = "expired"
	KindInvalidPayload       = "invalid_payload"
	KindInvalidIntensity     = "invalid_intensity"
	KindIntensityOutOfRange  = "intensity_out_of_range"
	KindNotReady             = "not_ready"
	KindRateLimited          = "rate_limited"
	KindDeadlineExceeded     = "deadline_exceeded"
	KindRequestCanceled      = "request_canceled"
	KindNotFound             = "not_found"
	KindInternal             = "internal_error"
	KindServiceUnavailable   = "service_unavailable"
	KindMethodNotAllowed     = "method_not_allowed"
	KindUnprocessableRequest = "unprocessable_request"
)

// DomainError standardizes application errors.
type DomainError struct {
	Kind       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(kind, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Kind: kind, Message: message, HTTPStatus: status, Details: details}
}

func NewAuthenticationError(kind, message string) error {
	return NewDomainError(kind, message, http.StatusUnauthorized, nil)
}

func NewValidationError(kind, message string, details map[string]any) error {
	return NewDomainError(kind, message, http.StatusUnprocessableEntity, details)
}

// NewSimulatedError builds a deliberate failure with a declared status.
func NewSimulatedError(kind, message string, status int) error {
	return NewDomainError(kind, message, status, map[string]any{"simulated": true})
}

func NewNotReady(details map[string]any) error {
	return NewDomainError(KindNotReady, "one or more readiness checks failed", http.StatusServiceUnavailable, details)
}

func NewRateLimited(message string) error {
	return NewDomainError(KindRateLimited, message, http.StatusTooManyRequests, nil)
}

func NewDeadlineExceeded(err error) error {
	return &DomainError{
		Kind:       KindDeadlineExceeded,
		Message:    "request deadline exceeded",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Kind:       KindNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Kind:       KindInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewDeadlineExceeded(err).(*DomainError)
	}
	if errors.Is(err, context.Canceled) {
		// 499 is the de-facto "client closed request" status.
		return &DomainError{Kind: KindRequestCanceled, Message: "request canceled", HTTPStatus: 499, Err: err}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{
			Kind:       kindForStatus(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
			Err:        err,
		}
	}
	return NewInternalError(err).(*DomainError)
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusMethodNotAllowed:
		return KindMethodNotAllowed
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindUnprocessableRequest
	case http.StatusUnauthorized:
		return KindInvalidCredentials
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return KindDeadlineExceeded
	default:
		return KindInternal
	}
}
