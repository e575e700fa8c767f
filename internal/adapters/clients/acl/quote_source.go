package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jsamuelsen/quoteboard/internal/adapters/clients"
	"github.com/jsamuelsen/quoteboard/internal/domain"
	"github.com/jsamuelsen/quoteboard/internal/platform/logging"
	"github.com/jsamuelsen/quoteboard/internal/ports"
)

// Default remote paths, matching the JSONPlaceholder posts resource.
const (
	DefaultFetchPath  = "/posts"
	DefaultNotifyPath = "/posts"
)

// QuoteSourceConfig configures a QuoteSource.
type QuoteSourceConfig struct {
	// Client must have its BaseURL set to the remote service.
	Client *clients.Client

	// FetchPath and NotifyPath default to DefaultFetchPath and DefaultNotifyPath.
	FetchPath  string
	NotifyPath string

	Logger *slog.Logger
}

// QuoteSource is the remote quote service. It implements
// ports.RemoteQuoteSource and ports.HealthChecker.
type QuoteSource struct {
	BaseAdapter

	fetchPath  string
	notifyPath string
	logger     *slog.Logger
}

var (
	_ ports.RemoteQuoteSource = (*QuoteSource)(nil)
	_ ports.HealthChecker     = (*QuoteSource)(nil)
)

// NewQuoteSource creates a QuoteSource. It panics without a client.
func NewQuoteSource(cfg QuoteSourceConfig) *QuoteSource {
	if cfg.Client == nil {
		panic("acl.NewQuoteSource: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fetchPath := cfg.FetchPath
	if fetchPath == "" {
		fetchPath = DefaultFetchPath
	}

	notifyPath := cfg.NotifyPath
	if notifyPath == "" {
		notifyPath = DefaultNotifyPath
	}

	return &QuoteSource{
		BaseAdapter: NewBaseAdapter(cfg.Client, cfg.Client.ServiceName()),
		fetchPath:   fetchPath,
		notifyPath:  notifyPath,
		logger:      logger.With(slog.String("component", "acl.QuoteSource")),
	}
}

// postDTO is one record of the remote listing. Only id and title matter.
type postDTO struct {
	ID    remoteID `json:"id"`
	Title string      `json:"title"`
}

// remoteID is an opaque record id sent as a JSON string or number. Any other
// JSON value decodes to "" so the record is dropped rather than failing the
// whole listing.
type remoteID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *remoteID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = remoteID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = remoteID(n.String())
		return nil
	}

	*id = ""

	return nil
}

// noticeDTO is the body posted after a sync.
type noticeDTO struct {
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

// FetchSnapshot implements ports.RemoteQuoteSource. Records without an id
// or title are dropped.
func (s *QuoteSource) FetchSnapshot(ctx context.Context, limit int) ([]domain.RemoteRecord, error) {
	logger := logging.FromContextOr(ctx, s.logger)

	path := s.fetchPath
	if limit > 0 {
		path = withQuery(path, "_limit", strconv.Itoa(limit))
	}

	logger.Log(ctx, logging.LevelTrace, "fetching snapshot", slog.String("path", path))

	body, err := s.Get(ctx, path, "fetch snapshot")
	if err != nil {
		return nil, err
	}

	posts, err := DecodeResponse[[]postDTO](body, s.ServiceName())
	if err != nil {
		return nil, err
	}

	records := TranslateSlice(posts, translatePost)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	logger.DebugContext(ctx, "fetched snapshot",
		slog.Int("received", len(posts)),
		slog.Int("usable", len(records)),
	)

	return records, nil
}

// Notify implements ports.RemoteQuoteSource. The response body is ignored.
func (s *QuoteSource) Notify(ctx context.Context, notice ports.SyncNotice) error {
	body, err := s.PostJSON(ctx, s.notifyPath, noticeDTO{
		Count:     notice.Count,
		Timestamp: notice.Timestamp.UTC().Format(time.RFC3339Nano),
	}, "notify sync")
	if err != nil {
		return err
	}

	return body.Close()
}

// Name implements ports.HealthChecker.
func (s *QuoteSource) Name() string {
	return s.ServiceName()
}

// Check implements ports.HealthChecker without contacting the remote: the
// source is unhealthy while its circuit breaker refuses requests.
func (s *QuoteSource) Check(context.Context) error {
	if state := s.Client().CircuitState(); state == clients.StateOpen {
		return fmt.Errorf("%w: state %s", clients.ErrCircuitOpen, state)
	}

	return nil
}

func translatePost(p *postDTO) (domain.RemoteRecord, bool) {
	id := strings.TrimSpace(string(p.ID))
	title := strings.TrimSpace(p.Title)

	if id == "" || title == "" {
		return domain.RemoteRecord{}, false
	}

	return domain.RemoteRecord{ID: id, Title: title}, true
}

func withQuery(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
