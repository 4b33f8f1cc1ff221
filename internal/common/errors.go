package common

import (
	"errors"
	"net/http"
)

// Error codes shared by the checkout and webhook endpoints.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeMissingField        = "MISSING_FIELD"
	CodeInvalidFormat       = "INVALID_FORMAT"
	CodeServiceNotSupported = "SERVICE_NOT_SUPPORTED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeMalformedPayload    = "MALFORMED_PAYLOAD"
	CodePaymentProvider     = "PAYMENT_PROVIDER_ERROR"
	CodeWebhookConfig       = "WEBHOOK_NOT_CONFIGURED"
	CodeWebhookProcessing   = "WEBHOOK_PROCESSING_FAILED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
//
// Message is what the client sees. For server-side failures Detail carries a
// generic explanation and Err holds the real cause, which is only logged.
type AppError struct {
	Code       string
	Message    string
	Detail     string
	HTTPStatus int
	Err        error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest builds a 400 AppError whose message is safe to show verbatim.
func BadRequest(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusBadRequest, err)
}

// Internal builds a 500 AppError. The cause is kept for logs but never rendered.
func Internal(code, message, detail string, err error) *AppError {
	return &AppError{Code: code, Message: message, Detail: detail, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// AsAppError extracts an AppError from err, falling back to a generic 500.
func AsAppError(err error) *AppError {
	var target *AppError
	if errors.As(err, &target) && target != nil {
		return target
	}
	return Internal(CodeInternal, "Internal server error", "unexpected error", err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
