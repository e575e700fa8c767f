package dto

import (
	"time"

	"github.com/jsamuelsen/quoteboard/internal/domain"
)

// QuoteResponse is one quote as returned by the API.
type QuoteResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromQuote converts a domain quote.
func FromQuote(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:        q.ID,
		Text:      q.Text,
		Category:  q.Category,
		UpdatedAt: q.UpdatedAt,
	}
}

// FromQuotes converts a slice of domain quotes. The result is never nil.
func FromQuotes(quotes []domain.Quote) []QuoteResponse {
	out := make([]QuoteResponse, len(quotes))
	for i, q := range quotes {
		out[i] = FromQuote(q)
	}

	return out
}

// QuoteListResponse is the body of GET /quotes.
type QuoteListResponse struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Quotes   []QuoteResponse `json:"quotes"`
}

// ListQuotesQuery is the query string of GET /quotes and GET /quotes/random.
type ListQuotesQuery struct {
	Category string `form:"category"`
}

// AddQuoteRequest is the body of POST /quotes.
type AddQuoteRequest struct {
	Text     string `json:"text" validate:"notempty"`
	Category string `json:"category" validate:"notempty,category"`
}

// CategoriesResponse is the body of GET /categories.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
	Selected   string   `json:"selected"`
}

// FilterRequest is the body of PUT /filter. A blank category resets the
// filter to "All".
type FilterRequest struct {
	Category string `json:"category"`
}

// FilterResponse is the body of GET and PUT /filter.
type FilterResponse struct {
	Category string `json:"category"`
}

// ImportResponse is the body of POST /quotes/import.
type ImportResponse struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// SyncOutcomeResponse is the result of one sync attempt.
type SyncOutcomeResponse struct {
	Added     int       `json:"added"`
	Updated   int       `json:"updated"`
	Conflicts int       `json:"conflicts"`
	At        time.Time `json:"at"`
	Failed    bool      `json:"failed"`
	Reason    string    `json:"reason,omitempty"`
}

// SyncStatusResponse is the body of GET /sync/status.
type SyncStatusResponse struct {
	State       string               `json:"state"`
	LastSyncAt  *time.Time           `json:"lastSyncAt,omitempty"`
	LastOutcome *SyncOutcomeResponse `json:"lastOutcome,omitempty"`
}
