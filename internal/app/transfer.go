package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jsamuelsen/quoteboard/internal/domain"
)

// quoteRecord is the JSON shape of a quote in storage and in export files.
type quoteRecord struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Category  string `json:"category"`
	UpdatedAt string `json:"updatedAt"`
}

func toRecord(q domain.Quote) quoteRecord {
	return quoteRecord{
		ID:        q.ID,
		Text:      q.Text,
		Category:  q.Category,
		UpdatedAt: q.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func marshalQuotes(quotes []domain.Quote, indent string) ([]byte, error) {
	records := make([]quoteRecord, len(quotes))
	for i, q := range quotes {
		records[i] = toRecord(q)
	}

	var (
		data []byte
		err  error
	)

	if indent != "" {
		data, err = json.MarshalIndent(records, "", indent)
	} else {
		data, err = json.Marshal(records)
	}

	if err != nil {
		return nil, fmt.Errorf("encoding quotes: %w", err)
	}

	return data, nil
}

func marshalQuote(q domain.Quote) ([]byte, error) {
	return json.Marshal(toRecord(q))
}

func unmarshalQuote(data []byte) (domain.Quote, error) {
	var r quoteRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Quote{}, domain.NewParseError("last viewed quote", err)
	}

	at, _ := time.Parse(time.RFC3339Nano, r.UpdatedAt)

	return domain.Quote{ID: r.ID, Text: r.Text, Category: r.Category, UpdatedAt: at.UTC()}, nil
}

// decodeJSON parses data into a generic JSON value, keeping numbers exact.
func decodeJSON(data []byte, source string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, domain.NewParseError(source, err)
	}

	if dec.More() {
		return nil, domain.NewParseError(source, fmt.Errorf("unexpected data after top-level value"))
	}

	return value, nil
}

// acceptItems filters a decoded JSON value down to valid quotes.
//
// The value must be an array. Items must be objects whose text and category
// are non-blank strings; everything else is dropped. An item keeps its id and
// updatedAt when it carries both, the timestamp parses and the id is not
// already taken; otherwise it gets a fresh identity.
func (s *Store) acceptItems(value any, taken map[string]struct{}) ([]domain.Quote, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, domain.NewValidationError("", "import must be a JSON array")
	}

	if taken == nil {
		taken = make(map[string]struct{}, len(items))
	}

	now := s.now().UTC()
	quotes := make([]domain.Quote, 0, len(items))

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		text, okText := obj["text"].(string)
		category, okCategory := obj["category"].(string)
		if !okText || !okCategory {
			continue
		}

		id, at := keptIdentity(obj, taken)

		quote, err := domain.NewQuote(id, text, category, at)
		if err != nil {
			continue
		}

		if quote.ID == "" {
			if quote.ID, err = s.newID(); err != nil {
				return nil, err
			}

			quote.UpdatedAt = now
		}

		taken[quote.ID] = struct{}{}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return nil, domain.NewValidationError("", "no valid quotes to import")
	}

	return quotes, nil
}

// keptIdentity returns the item's own id and timestamp, or "" if it has none usable.
func keptIdentity(obj map[string]any, taken map[string]struct{}) (string, time.Time) {
	id, _ := obj["id"].(string)
	stamp, _ := obj["updatedAt"].(string)

	id = strings.TrimSpace(id)
	if id == "" || stamp == "" {
		return "", time.Time{}
	}

	if _, dup := taken[id]; dup {
		return "", time.Time{}
	}

	at, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return "", time.Time{}
	}

	return id, at
}

// ImportQuotes appends the valid items of raw, a decoded JSON value, and
// returns how many were imported. Items are not merged with existing quotes.
func (s *Store) ImportQuotes(ctx context.Context, raw any) (int, error) {
	logger := s.loggerFor(ctx).With(slog.String("method", "ImportQuotes"))

	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]struct{}, len(s.quotes))
	for _, q := range s.quotes {
		taken[q.ID] = struct{}{}
	}

	imported, err := s.acceptItems(raw, taken)
	if err != nil {
		return 0, fmt.Errorf("importing quotes: %w", err)
	}

	next := append(slices.Clip(s.quotes), imported...)
	if err := s.persistLocked(ctx, next); err != nil {
		return 0, err
	}

	s.quotes = next

	logger.InfoContext(ctx, "imported quotes", slog.Int("count", len(imported)))

	return len(imported), nil
}

// ImportJSON parses data and imports it. Malformed JSON is a domain.ParseError.
func (s *Store) ImportJSON(ctx context.Context, data []byte) (int, error) {
	value, err := decodeJSON(data, "import file")
	if err != nil {
		return 0, err
	}

	return s.ImportQuotes(ctx, value)
}

// ExportQuotes returns the collection as an indented JSON array.
func (s *Store) ExportQuotes() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return marshalQuotes(s.quotes, "  ")
}
