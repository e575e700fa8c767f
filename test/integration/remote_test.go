//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsamuelsen/quoteboard/internal/adapters/clients"
	"github.com/jsamuelsen/quoteboard/internal/platform/config"
)

// testClientConfig returns a client config with short timings and no retries.
func testClientConfig(baseURL string, logger *slog.Logger) *clients.Config {
	return &clients.Config{
		BaseURL:     baseURL,
		ServiceName: "quote-source",
		Timeout:     2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     1,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   3,
			Timeout:       time.Minute,
			HalfOpenLimit: 1,
		},
		Logger: logger,
	}
}

type notice struct {
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

// fakeRemote serves GET /posts?_limit=n and records POST /posts notices.
type fakeRemote struct {
	*httptest.Server

	posts   atomic.Int32
	down    atomic.Bool
	fetches atomic.Int32

	// gate, when set, holds every fetch until it is closed.
	gate chan struct{}

	mu       sync.Mutex
	received []notice
}

func newFakeRemote(posts int) *fakeRemote {
	f := &fakeRemote{}
	f.posts.Store(int32(posts))
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))

	return f
}

func (f *fakeRemote) setPosts(n int)    { f.posts.Store(int32(n)) }
func (f *fakeRemote) setDown(down bool) { f.down.Store(down) }

func (f *fakeRemote) notices() []notice {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]notice(nil), f.received...)
}

func (f *fakeRemote) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		f.fetches.Add(1)
	}

	if f.down.Load() {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path != "/posts" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if f.gate != nil {
			<-f.gate
		}

		n := int(f.posts.Load())
		if limit, err := strconv.Atoi(r.URL.Query().Get("_limit")); err == nil && limit < n {
			n = limit
		}

		posts := make([]map[string]any, 0, n)
		for i := 1; i <= n; i++ {
			posts = append(posts, map[string]any{
				"id":     i,
				"userId": 1,
				"title":  fmt.Sprintf("remote post %d", i),
				"body":   "ignored",
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(posts)

	case http.MethodPost:
		var n notice
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.received = append(f.received, n)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":101}`))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
