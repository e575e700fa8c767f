// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import "context"

// Storage keys used by the quote board.
const (
	// KeyQuotes holds the full quote collection as a JSON array.
	KeyQuotes = "quotes"

	// KeySelectedCategory holds the last chosen category filter.
	KeySelectedCategory = "selectedCategory"

	// KeyLastSyncAt holds the RFC 3339 time of the last completed sync.
	KeyLastSyncAt = "lastSyncAt"

	// KeyLastViewedQuote holds the last quote shown in this session (session storage).
	KeyLastViewedQuote = "lastViewedQuote"
)

// KeyValueStore is a string key-value storage area.
// The board uses two of them: a durable one that survives restarts and a
// session-scoped one that is cleared when the process ends.
//
// Writes overwrite the whole value; there is no partial update.
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key has never been written.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}
