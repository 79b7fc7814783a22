package phonepe

import (
	"errors"
	"fmt"
)

// ErrInvalidCallback is returned when a webhook fails authorization or cannot be decoded
var ErrInvalidCallback = errors.New("invalid phonepe callback")

// APIError is a non-2xx response from the gateway
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("phonepe api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("phonepe api error: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether retrying the request later may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
