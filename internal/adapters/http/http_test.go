package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quoteboard/internal/adapters/http/dto"
	"github.com/jsamuelsen/quoteboard/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quoteboard/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quoteboard/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quoteboard/internal/app"
	"github.com/jsamuelsen/quoteboard/internal/domain"
	"github.com/jsamuelsen/quoteboard/internal/mocks"
	"github.com/jsamuelsen/quoteboard/internal/platform/config"
	"github.com/jsamuelsen/quoteboard/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig(host string, port int) *config.ServerConfig {
	return &config.ServerConfig{
		Host:           host,
		Port:           port,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
}

func TestServerNew(t *testing.T) {
	cfg := testServerConfig("127.0.0.1", 8080)
	logger := discardLogger()

	srv := New(cfg, logger)

	require.NotNil(t, srv)
	assert.IsType(t, &gin.Engine{}, srv.Engine())
	assert.Equal(t, cfg, srv.Config())
	assert.Equal(t, 5*time.Second, srv.httpServer.ReadHeaderTimeout)
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		name         string
		host         string
		port         int
		expectedAddr string
	}{
		{"localhost", "localhost", 8080, "localhost:8080"},
		{"all interfaces", "0.0.0.0", 3000, "0.0.0.0:3000"},
		{"ipv6 loopback", "::1", 9000, "[::1]:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(testServerConfig(tt.host, tt.port), discardLogger())
			assert.Equal(t, tt.expectedAddr, srv.Addr())
		})
	}
}

func TestServerStartShutdown(t *testing.T) {
	srv := New(testServerConfig("127.0.0.1", 0), discardLogger())
	srv.Engine().GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	errCh := srv.Start()

	addr := srv.Addr()
	require.NotEqual(t, "127.0.0.1:0", addr, "Addr reports the bound port")

	resp, err := http.Get("http://" + addr + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to stop")
	}
}

func TestServerStart_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	port := ln.Addr().(*net.TCPAddr).Port

	errCh := New(testServerConfig("127.0.0.1", port), discardLogger()).Start()

	err, ok := <-errCh
	require.True(t, ok)
	assert.ErrorContains(t, err, "listening on")
}

type routerFixture struct {
	engine *gin.Engine
	remote *mocks.MockRemoteQuoteSource
}

func newRouterFixture(t *testing.T, maxBody int64, timeout time.Duration) *routerFixture {
	t.Helper()

	remote := mocks.NewMockRemoteQuoteSource(t)
	store := app.NewStore(app.StoreConfig{
		Durable: memory.New("durable"),
		Session: memory.New("session"),
		Remote:  remote,
		Logger:  discardLogger(),
	})
	require.NoError(t, store.Initialize(context.Background()))

	registry := mocks.NewMockHealthRegistry(t)
	registry.EXPECT().CheckAll(mock.Anything).Return(&ports.HealthResult{
		Status: ports.HealthStatusHealthy,
	}).Maybe()

	cfg := testServerConfig("127.0.0.1", 0)
	cfg.MaxRequestSize = maxBody

	srv := New(cfg, discardLogger())
	SetupRouter(srv.Engine(), RouterConfig{
		Logger:        discardLogger(),
		ServiceName:   "quoteboard-test",
		HealthHandler: handlers.NewHealthHandler(registry, handlers.BuildInfo{Version: "test"}),
		QuoteHandler:  handlers.NewQuoteHandler(store),
		Timeout:       timeout,
	})

	return &routerFixture{engine: srv.Engine(), remote: remote}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	return w
}

func TestSetupRouter_Routes(t *testing.T) {
	f := newRouterFixture(t, 1<<20, 0)

	routes := make(map[string]bool)
	for _, r := range f.engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"GET /-/live",
		"GET /-/ready",
		"GET /-/build",
		"GET /-/metrics",
		"GET /api/v1/quotes",
		"POST /api/v1/quotes",
		"GET /api/v1/quotes/random",
		"POST /api/v1/sync",
	} {
		assert.True(t, routes[want], "missing route: %s", want)
	}
}

func TestSetupRouter_Chain(t *testing.T) {
	f := newRouterFixture(t, 1<<20, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	req.Header.Set(middleware.HeaderCorrelationID, "txn-42")

	w := f.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "txn-42", w.Header().Get(middleware.HeaderCorrelationID))

	var resp dto.CategoriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"All", "mindset", "productivity", "programming"}, resp.Categories)
}

func TestSetupRouter_ProbesAreReachable(t *testing.T) {
	f := newRouterFixture(t, 1<<20, 0)

	for _, path := range []string{"/-/live", "/-/ready", "/-/build"} {
		w := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestSetupRouter_RequestTimeout(t *testing.T) {
	f := newRouterFixture(t, 1<<20, 2*time.Second)

	var deadline time.Time
	f.remote.EXPECT().FetchSnapshot(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, _ int) ([]domain.RemoteRecord, error) {
			deadline, _ = ctx.Deadline()
			return nil, nil
		})
	f.remote.EXPECT().Notify(mock.Anything, mock.Anything).Return(nil)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

func TestMaxBodySize(t *testing.T) {
	f := newRouterFixture(t, 64, 0)

	small := `[{"text":"Less is more.","category":"mindset"}]`
	big := `[{"text":"` + strings.Repeat("x", 200) + `","category":"mindset"}]`

	w := f.do(jsonRequest(http.MethodPost, "/api/v1/quotes/import", small))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(jsonRequest(http.MethodPost, "/api/v1/quotes/import", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
}

func TestRecoveryInChain(t *testing.T) {
	f := newRouterFixture(t, 1<<20, 0)
	f.engine.GET("/api/v1/explode", func(*gin.Context) { panic("kaboom") })

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrorCodeInternal)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}
