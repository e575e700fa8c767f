// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// The quote board has one service, the Store. It owns the in-memory quote
// collection and mirrors every mutation to durable storage before returning.
//
// What does NOT belong here:
//   - HTTP specifics (that's adapters/http)
//   - SQL or wire formats of the remote service (that's adapters)
//   - The merge rule itself (that's the domain layer)
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jsamuelsen/quoteboard/internal/domain"
	"github.com/jsamuelsen/quoteboard/internal/platform/logging"
	"github.com/jsamuelsen/quoteboard/internal/ports"
)

const (
	instrumentationName = "github.com/jsamuelsen/quoteboard/app"

	// DefaultSnapshotSize is the number of remote records fetched per sync.
	DefaultSnapshotSize = 5
)

// Store is the quote store and sync engine.
// All methods are safe for concurrent use.
//
// Example usage:
//
//	store := app.NewStore(app.StoreConfig{
//	    Durable: sqliteStore,
//	    Session: memory.New("session-store"),
//	    Remote:  quoteSource,
//	    Logger:  logger,
//	})
//	if err := store.Initialize(ctx); err != nil { ... }
//	quote, ok := store.PickRandom(ctx, "mindset")
type Store struct {
	durable ports.KeyValueStore
	session ports.KeyValueStore
	remote  ports.RemoteQuoteSource
	logger  *slog.Logger

	now          func() time.Time
	intn         func(n int) int
	newID        func() (string, error)
	snapshotSize int

	tracer  trace.Tracer
	metrics *syncMetrics
	flight  singleflight.Group
	phase   phaseTracker

	mu          sync.RWMutex
	quotes      []domain.Quote
	selected    string
	lastSyncAt  time.Time
	lastOutcome *SyncOutcome
}

// StoreConfig contains the dependencies of a Store.
// Durable, Session and Remote are required; the rest default.
type StoreConfig struct {
	Durable ports.KeyValueStore
	Session ports.KeyValueStore
	Remote  ports.RemoteQuoteSource
	Logger  *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Intn returns a uniform integer in [0, n). Defaults to math/rand/v2.IntN.
	Intn func(n int) int

	// NewID generates identifiers for local quotes. Defaults to NewLocalID.
	NewID func() (string, error)

	// SnapshotSize is the remote fetch limit. Defaults to DefaultSnapshotSize.
	SnapshotSize int
}

// NewStore creates a store with the provided dependencies.
// It panics if a required port is missing, as that is a wiring bug.
// The store is empty until Initialize is called.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Durable == nil || cfg.Session == nil || cfg.Remote == nil {
		panic("app: NewStore requires Durable, Session and Remote")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		durable:      cfg.Durable,
		session:      cfg.Session,
		remote:       cfg.Remote,
		logger:       logger.With(slog.String("component", "app.Store")),
		now:          cfg.Now,
		intn:         cfg.Intn,
		newID:        cfg.NewID,
		snapshotSize: cfg.SnapshotSize,
		tracer:       otel.Tracer(instrumentationName),
		selected:     domain.CategoryAll,
	}

	if s.now == nil {
		s.now = time.Now
	}

	if s.intn == nil {
		s.intn = rand.IntN
	}

	if s.newID == nil {
		s.newID = NewLocalID
	}

	if s.snapshotSize <= 0 {
		s.snapshotSize = DefaultSnapshotSize
	}

	metrics, err := newSyncMetrics()
	if err != nil {
		otel.Handle(err)
	}

	s.metrics = metrics

	return s
}

// NewLocalID returns a time-ordered, collision-resistant identifier for a
// quote created on this board.
func NewLocalID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating quote id: %w", err)
	}

	return domain.LocalIDPrefix + id.String(), nil
}

// loggerFor prefers the request-scoped logger carried by ctx.
func (s *Store) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

// Initialize loads the collection, the selected category and the last sync
// time from durable storage.
//
// Missing or unreadable quote data is replaced by the default set, which is
// persisted immediately. Only storage I/O failures are returned.
func (s *Store) Initialize(ctx context.Context) error {
	logger := s.loggerFor(ctx).With(slog.String("method", "Initialize"))

	s.mu.Lock()
	defer s.mu.Unlock()

	quotes, err := s.loadQuotes(ctx, logger)
	if err != nil {
		return err
	}

	if len(quotes) == 0 {
		quotes, err = s.seedQuotes()
		if err != nil {
			return err
		}

		if err := s.persistLocked(ctx, quotes); err != nil {
			return err
		}

		logger.InfoContext(ctx, "seeded default quotes", slog.Int("count", len(quotes)))
	}

	s.quotes = quotes

	selected, err := s.readOptional(ctx, ports.KeySelectedCategory)
	if err != nil {
		return err
	}

	if selected = strings.TrimSpace(selected); selected != "" {
		s.selected = selected
	}

	lastSync, err := s.readOptional(ctx, ports.KeyLastSyncAt)
	if err != nil {
		return err
	}

	if lastSync != "" {
		if at, perr := time.Parse(time.RFC3339Nano, lastSync); perr == nil {
			s.lastSyncAt = at.UTC()
		} else {
			logger.WarnContext(ctx, "ignoring unreadable last sync time", slog.String("value", lastSync))
		}
	}

	logger.InfoContext(ctx, "store initialized",
		slog.Int("quotes", len(s.quotes)),
		slog.String("category", s.selected),
	)

	return nil
}

// loadQuotes reads the stored collection. Absent or malformed data yields nil.
func (s *Store) loadQuotes(ctx context.Context, logger *slog.Logger) ([]domain.Quote, error) {
	raw, err := s.readOptional(ctx, ports.KeyQuotes)
	if err != nil || raw == "" {
		return nil, err
	}

	value, err := decodeJSON([]byte(raw), "stored quotes")
	if err != nil {
		logger.WarnContext(ctx, "stored quotes are unreadable, using defaults", slog.Any("error", err))
		return nil, nil
	}

	// Earlier boards stored bare {text, category} objects; they are accepted
	// and given identities the same way an import is.
	quotes, err := s.acceptItems(value, nil)
	if err != nil {
		logger.WarnContext(ctx, "stored quotes hold no valid entries, using defaults", slog.Any("error", err))
		return nil, nil
	}

	return quotes, nil
}

func (s *Store) seedQuotes() ([]domain.Quote, error) {
	defaults := domain.DefaultQuotes()
	at := s.now().UTC()

	for i := range defaults {
		id, err := s.newID()
		if err != nil {
			return nil, err
		}

		defaults[i].ID = id
		defaults[i].UpdatedAt = at
	}

	return defaults, nil
}

// readOptional returns "" for a missing key.
func (s *Store) readOptional(ctx context.Context, key string) (string, error) {
	value, err := s.durable.Get(ctx, key)
	if domain.IsNotFound(err) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}

	return value, nil
}

// persistLocked writes the whole collection. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context, quotes []domain.Quote) error {
	data, err := marshalQuotes(quotes, "")
	if err != nil {
		return err
	}

	if err := s.durable.Set(ctx, ports.KeyQuotes, string(data)); err != nil {
		return fmt.Errorf("persisting quotes: %w", err)
	}

	return nil
}

// ListCategories returns CategoryAll followed by the distinct categories in
// ascending byte order. Blank categories are left out.
func (s *Store) ListCategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.quotes))
	categories := make([]string, 0, len(s.quotes))

	for _, q := range s.quotes {
		c := strings.TrimSpace(q.Category)
		if c == "" {
			continue
		}

		if _, dup := seen[c]; dup {
			continue
		}

		seen[c] = struct{}{}
		categories = append(categories, c)
	}

	slices.Sort(categories)

	return append([]string{domain.CategoryAll}, categories...)
}

// ListQuotes returns the quotes in category, in collection order.
// CategoryAll or "" returns the whole collection.
func (s *Store) ListQuotes(category string) []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterQuotes(s.quotes, strings.TrimSpace(category))
}

func filterQuotes(quotes []domain.Quote, category string) []domain.Quote {
	matched := make([]domain.Quote, 0, len(quotes))

	for _, q := range quotes {
		if q.InCategory(category) {
			matched = append(matched, q)
		}
	}

	return matched
}

// Len returns the size of the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}

// PickRandom returns a uniformly chosen quote from category.
// The second result is false when no quote matches; that is not an error.
// The pick is recorded as the session's last-viewed quote.
func (s *Store) PickRandom(ctx context.Context, category string) (domain.Quote, bool) {
	pool := s.ListQuotes(category)
	if len(pool) == 0 {
		return domain.Quote{}, false
	}

	quote := pool[s.intn(len(pool))]

	data, err := marshalQuote(quote)
	if err == nil {
		err = s.session.Set(ctx, ports.KeyLastViewedQuote, string(data))
	}

	if err != nil {
		s.loggerFor(ctx).WarnContext(ctx, "failed to record last viewed quote",
			slog.String("quote_id", quote.ID),
			slog.Any("error", err),
		)
	}

	return quote, true
}

// LastViewed returns the quote most recently picked in this session.
// Returns a domain.NotFoundError if nothing has been picked.
func (s *Store) LastViewed(ctx context.Context) (domain.Quote, error) {
	raw, err := s.session.Get(ctx, ports.KeyLastViewedQuote)
	if domain.IsNotFound(err) {
		return domain.Quote{}, domain.NewNotFoundError("last viewed quote", "")
	}

	if err != nil {
		return domain.Quote{}, fmt.Errorf("reading last viewed quote: %w", err)
	}

	return unmarshalQuote([]byte(raw))
}

// AddQuote validates and appends a new local quote.
// On a validation error the collection is untouched.
func (s *Store) AddQuote(ctx context.Context, text, category string) (domain.Quote, error) {
	logger := s.loggerFor(ctx).With(slog.String("method", "AddQuote"))

	id, err := s.newID()
	if err != nil {
		return domain.Quote{}, err
	}

	quote, err := domain.NewQuote(id, text, category, s.now())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("adding quote: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(slices.Clip(s.quotes), quote)
	if err := s.persistLocked(ctx, next); err != nil {
		return domain.Quote{}, err
	}

	s.quotes = next

	logger.InfoContext(ctx, "added quote",
		slog.String("quote_id", quote.ID),
		slog.String("category", quote.Category),
	)

	return quote, nil
}

// SelectCategory stores the category filter durably.
// Blank input resets the filter to CategoryAll.
func (s *Store) SelectCategory(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = domain.CategoryAll
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.durable.Set(ctx, ports.KeySelectedCategory, category); err != nil {
		return "", fmt.Errorf("persisting selected category: %w", err)
	}

	s.selected = category

	s.loggerFor(ctx).DebugContext(ctx, "selected category", slog.String("category", category))

	return category, nil
}

// SelectedCategory returns the current category filter.
func (s *Store) SelectedCategory() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selected
}
