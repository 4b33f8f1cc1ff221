package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCheckoutURL marks a successful provider response without a checkout link.
	ErrMissingCheckoutURL = errors.New("payment: provider response has no checkout url")
	// ErrMalformedResponse marks a 2xx provider response that is not the expected JSON.
	ErrMalformedResponse = errors.New("payment: provider response is not valid json")
)

// GatewayRequestFailedError reports a provider call that did not succeed.
// StatusCode is zero when no response was received (transport error or timeout).
type GatewayRequestFailedError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayRequestFailedError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment: provider request failed: %v", e.Err)
	}
	return fmt.Sprintf("payment: provider responded %d", e.StatusCode)
}

func (e *GatewayRequestFailedError) Unwrap() error { return e.Err }

// GatewayInvariantError reports a provider response that breaks the
// integration contract. It cannot be caused by client input.
type GatewayInvariantError struct {
	OrderID string
	Err     error
}

func (e *GatewayInvariantError) Error() string {
	if e.OrderID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (order %s)", e.Err, e.OrderID)
}

func (e *GatewayInvariantError) Unwrap() error { return e.Err }
