package clients

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quoteboard/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quoteboard/internal/platform/config"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:     baseURL,
		ServiceName: "quote-source",
		Timeout:     5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   5,
			Timeout:       time.Second,
			HalfOpenLimit: 2,
		},
	}
}

// newTestClient builds a client whose backoff sleeps are skipped.
func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()

	client, err := New(cfg)
	require.NoError(t, err)

	client.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	return client
}

func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()

	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}
}

// statusSequence answers with codes in order, repeating the last one.
func statusSequence(calls *atomic.Int32, codes ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1)) - 1
		w.WriteHeader(codes[min(n, len(codes)-1)])
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "config is required")

	cfg := testConfig("https://example.com")
	cfg.ServiceName = ""
	_, err = New(cfg)
	require.ErrorContains(t, err, "service name is required")
}

func TestNew_AppliesTransportConfig(t *testing.T) {
	cfg := testConfig("https://example.com/")
	cfg.Transport = config.TransportConfig{
		MaxIdleConns:        7,
		MaxIdleConnsPerHost: 3,
		IdleConnTimeout:     time.Minute,
	}

	client := newTestClient(t, cfg)

	transport, ok := client.http.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 7, transport.MaxIdleConns)
	assert.Equal(t, 3, transport.MaxIdleConnsPerHost)
	assert.Equal(t, time.Minute, transport.IdleConnTimeout)
	assert.Equal(t, "https://example.com", client.baseURL)
	assert.Equal(t, "quote-source", client.ServiceName())
}

func TestNew_DefaultTransport(t *testing.T) {
	client := newTestClient(t, testConfig("https://example.com"))

	transport, ok := client.http.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, defaultMaxIdleConns, transport.MaxIdleConns)
	assert.Equal(t, defaultIdleConnTimeout, transport.IdleConnTimeout)
}

func TestClient_PropagatesIDs(t *testing.T) {
	var gotRequestID, gotCorrelationID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get(middleware.HeaderRequestID)
		gotCorrelationID = r.Header.Get(middleware.HeaderCorrelationID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))

	ctx := middleware.ContextWithRequestID(context.Background(), "req-123")
	ctx = middleware.ContextWithCorrelationID(ctx, "corr-456")

	resp, err := client.Get(ctx, "/posts")
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Equal(t, "req-123", gotRequestID)
	assert.Equal(t, "corr-456", gotCorrelationID)
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name       string
		codes      []int
		wantStatus int
		wantErr    error
		wantCalls  int32
	}{
		{name: "recovers after server errors", codes: []int{500, 502, 200}, wantStatus: 200, wantCalls: 3},
		{name: "client error is not retried", codes: []int{404}, wantStatus: 404, wantCalls: 1},
		{name: "gives up after max attempts", codes: []int{503}, wantErr: ErrMaxRetriesExceeded, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32

			server := httptest.NewServer(statusSequence(&calls, tt.codes...))
			defer server.Close()

			client := newTestClient(t, testConfig(server.URL))

			resp, err := client.Get(context.Background(), "/posts")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, ErrServerError)
			} else {
				require.NoError(t, err)
				defer closeBody(t, resp)
				assert.Equal(t, tt.wantStatus, resp.StatusCode)
			}

			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_PostJSONReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))

	resp, err := client.PostJSON(context.Background(), "/posts", []byte(`{"count":3}`))
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{`{"count":3}`, `{"count":3}`}, bodies)
}

func TestClient_CircuitOpensAndShortCircuits(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(statusSequence(&calls, http.StatusServiceUnavailable))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Retry.MaxAttempts = 1
	cfg.Circuit.MaxFailures = 2

	client := newTestClient(t, cfg)

	_, err := client.Get(context.Background(), "/posts")
	require.Error(t, err)
	assert.Equal(t, StateClosed, client.CircuitState())

	_, err = client.Get(context.Background(), "/posts")
	require.Error(t, err)
	assert.Equal(t, StateOpen, client.CircuitState())

	before := calls.Load()

	_, err = client.Get(context.Background(), "/posts")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, before, calls.Load(), "an open circuit must not reach the server")
}

func TestClient_AttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retry.MaxAttempts = 1

	client := newTestClient(t, cfg)

	_, err := client.Get(context.Background(), "/posts")
	require.Error(t, err)
}

func TestClient_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, testConfig(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "/posts")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestClient_BuildURL(t *testing.T) {
	client := newTestClient(t, testConfig("https://example.com"))

	assert.Equal(t, "https://example.com/posts", client.buildURL("/posts"))
	assert.Equal(t, "https://example.com/posts?_limit=5", client.buildURL("posts?_limit=5"))
}

func TestClient_Backoff(t *testing.T) {
	cfg := testConfig("https://example.com")
	cfg.Retry.InitialInterval = 100 * time.Millisecond
	cfg.Retry.Multiplier = 2.0
	cfg.Retry.MaxInterval = time.Second

	client := newTestClient(t, cfg)

	assert.Equal(t, 100*time.Millisecond, client.backoff(1))
	assert.Equal(t, 200*time.Millisecond, client.backoff(2))
	assert.Equal(t, 400*time.Millisecond, client.backoff(3))
	assert.Equal(t, time.Second, client.backoff(10), "capped at MaxInterval")

	client.retry.JitterFactor = 0.25
	for range 20 {
		d := client.backoff(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

type testNetError struct{ timeout bool }

func (e testNetError) Error() string   { return "test net error" }
func (e testNetError) Timeout() bool   { return e.timeout }
func (e testNetError) Temporary() bool { return true }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"net error with timeout", testNetError{timeout: true}, true},
		{"net error without timeout", testNetError{timeout: false}, false},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableError(tt.err))
		})
	}
}
