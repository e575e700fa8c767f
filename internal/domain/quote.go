// Package domain contains core business entities and rules.
package domain

import (
	"strings"
	"time"
)

const (
	// CategoryAll is the filter sentinel that matches every quote.
	CategoryAll = "All"

	// RemoteCategory labels quotes that originate from the remote source.
	RemoteCategory = "server"

	// LocalIDPrefix namespaces identifiers generated on this board.
	LocalIDPrefix = "local-"

	// RemoteIDPrefix namespaces identifiers derived from remote records.
	RemoteIDPrefix = "srv-"
)

// Quote is a single entry on the board.
// This is a domain entity - it has no knowledge of storage or transport.
type Quote struct {
	// ID is unique across the whole collection.
	ID string

	// Text is the quote itself, never empty.
	Text string

	// Category is a free-text label, stored verbatim.
	Category string

	// UpdatedAt is the time of last modification and the only conflict tie-breaker.
	UpdatedAt time.Time
}

// NewQuote validates text and category and returns a quote with the given identity.
// Both fields are trimmed before they are checked and stored.
func NewQuote(id, text, category string, at time.Time) (Quote, error) {
	text = strings.TrimSpace(text)
	category = strings.TrimSpace(category)

	if text == "" {
		return Quote{}, NewValidationError("text", "must not be empty")
	}

	if category == "" {
		return Quote{}, NewValidationError("category", "must not be empty")
	}

	return Quote{
		ID:        id,
		Text:      text,
		Category:  category,
		UpdatedAt: at.UTC(),
	}, nil
}

// InCategory reports whether the quote belongs to the given filter.
// The empty filter and CategoryAll match everything.
func (q Quote) InCategory(category string) bool {
	if category == "" || category == CategoryAll {
		return true
	}

	return strings.EqualFold(q.Category, category)
}

// RemoteQuoteID derives the namespaced identifier for a remote record.
func RemoteQuoteID(remoteID string) string {
	return RemoteIDPrefix + remoteID
}

// RemoteRecord is a record from the remote quote service, already translated
// out of its wire format.
type RemoteRecord struct {
	ID    string
	Title string
}

// DefaultQuotes is the seed set used when durable storage holds nothing usable.
func DefaultQuotes() []Quote {
	return []Quote{
		{Text: "The only way to learn a new programming language is by writing programs in it.", Category: "programming"},
		{Text: "Simplicity is the soul of efficiency.", Category: "productivity"},
		{Text: "First, solve the problem. Then, write the code.", Category: "programming"},
		{Text: "Whether you think you can, or you think you can’t—you’re right.", Category: "mindset"},
		{Text: "It always seems impossible until it’s done.", Category: "mindset"},
	}
}
