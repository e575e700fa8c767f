// Package clients provides the instrumented HTTP client used to reach the
// remote quote service.
package clients

import "errors"

// Infrastructure failures. The acl package translates them into domain errors.
var (
	// ErrCircuitOpen means the breaker rejected the request without sending it.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last failure once every attempt is spent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrServerError marks a 5xx response that exhausted the retries.
	ErrServerError = errors.New("server error")
)
