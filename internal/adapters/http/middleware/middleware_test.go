package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quoteboard/internal/adapters/http/dto"
	"github.com/jsamuelsen/quoteboard/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// logSink collects JSON log lines.
type logSink struct {
	buf bytes.Buffer
}

func (s *logSink) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&s.buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (s *logSink) entries(t *testing.T) []map[string]any {
	t.Helper()

	var out []map[string]any

	for line := range strings.Lines(s.buf.String()) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}

	return out
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestIDMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		middleware gin.HandlerFunc
		header     string
		fromGin    func(*gin.Context) string
		fromCtx    func(context.Context) string
		logKey     string
	}{
		{"request id", RequestID(), HeaderRequestID, GetRequestID, RequestIDFromContext, "request_id"},
		{"correlation id", CorrelationID(), HeaderCorrelationID, GetCorrelationID, CorrelationIDFromContext, "correlation_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" passes through inbound header", func(t *testing.T) {
			t.Parallel()

			var sink logSink
			var ginID, ctxID string

			router := gin.New()
			router.Use(ContextLogger(sink.logger()), tt.middleware)
			router.GET("/test", func(c *gin.Context) {
				ginID = tt.fromGin(c)
				ctxID = tt.fromCtx(c.Request.Context())
				logging.FromContext(c.Request.Context()).Info("inside")
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(tt.header, "upstream-123")

			w := serve(router, req)

			assert.Equal(t, "upstream-123", w.Header().Get(tt.header))
			assert.Equal(t, "upstream-123", ginID)
			assert.Equal(t, "upstream-123", ctxID)

			entries := sink.entries(t)
			require.Len(t, entries, 1)
			assert.Equal(t, "upstream-123", entries[0][tt.logKey])
		})

		t.Run(tt.name+" generates a uuid", func(t *testing.T) {
			t.Parallel()

			var ginID string

			router := gin.New()
			router.Use(tt.middleware)
			router.GET("/test", func(c *gin.Context) {
				ginID = tt.fromGin(c)
				c.Status(http.StatusOK)
			})

			w := serve(router, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, ginID, w.Header().Get(tt.header))
			_, err := uuid.Parse(ginID)
			assert.NoError(t, err)
		})
	}
}

func TestGetIDs_OutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Empty(t, GetRequestID(c))
	assert.Empty(t, GetCorrelationID(c))

	c.Set(ContextKeyRequestID, 42)
	assert.Empty(t, GetRequestID(c), "non-string values are ignored")
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, CorrelationIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "request-123")
	ctx = ContextWithCorrelationID(ctx, "correlation-456")

	assert.Equal(t, "request-123", RequestIDFromContext(ctx))
	assert.Equal(t, "correlation-456", CorrelationIDFromContext(ctx))
}

func TestTraceContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	var sink logSink
	var got string

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(trace.ContextWithSpanContext(c.Request.Context(), sc))
		c.Next()
	}, ContextLogger(sink.logger()), TraceContext())
	router.GET("/test", func(c *gin.Context) {
		got = dto.GetTraceID(c)
		logging.FromContext(c.Request.Context()).Info("inside")
		c.Status(http.StatusOK)
	})

	serve(router, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, traceID.String(), got)
	assert.Equal(t, traceID.String(), sink.entries(t)[0]["trace_id"])
}

func TestTraceContext_NoSpan(t *testing.T) {
	router := gin.New()
	router.Use(TraceContext())
	router.GET("/test", func(c *gin.Context) {
		_, ok := c.Get(dto.TraceIDKey)
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		status    int
		wantLevel string
		wantPath  string
	}{
		{"success", "/api/v1/quotes?category=mindset", http.StatusOK, "INFO", "/api/v1/quotes?category=mindset"},
		{"client error", "/api/v1/quotes", http.StatusBadRequest, "WARN", "/api/v1/quotes"},
		{"server error", "/api/v1/quotes", http.StatusInternalServerError, "ERROR", "/api/v1/quotes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sink logSink

			router := gin.New()
			router.Use(ContextLogger(sink.logger()), Logging())
			router.GET("/api/v1/quotes", func(c *gin.Context) {
				c.String(tt.status, "ok")
			})

			serve(router, httptest.NewRequest(http.MethodGet, tt.target, nil))

			entries := sink.entries(t)
			require.Len(t, entries, 1)
			assert.Equal(t, "request completed", entries[0]["msg"])
			assert.Equal(t, tt.wantLevel, entries[0]["level"])
			assert.Equal(t, tt.wantPath, entries[0]["path"])
			assert.Equal(t, "/api/v1/quotes", entries[0]["route"])
			assert.InDelta(t, tt.status, entries[0]["status"], 0)
		})
	}
}

func TestLogging_SkipsPaths(t *testing.T) {
	var sink logSink

	router := gin.New()
	router.Use(ContextLogger(sink.logger()), Logging("/favicon.ico"))
	router.GET("/-/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(router, httptest.NewRequest(http.MethodGet, "/-/live", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))

	assert.Empty(t, sink.buf.String())
}

func TestRecovery(t *testing.T) {
	var sink logSink

	router := gin.New()
	router.Use(ContextLogger(sink.logger()), Recovery())
	router.GET("/panic", func(c *gin.Context) {
		c.Set(dto.TraceIDKey, "trace-xyz")
		panic("boom")
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
	assert.Equal(t, "trace-xyz", resp.TraceID)

	entries := sink.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "panic recovered", entries[0]["msg"])
	assert.Equal(t, "boom", entries[0]["panic"])
	assert.Contains(t, entries[0]["stack"], "runtime/debug")
}

func TestRecovery_AfterWrite(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/partial", func(c *gin.Context) {
		c.String(http.StatusAccepted, "started")
		panic("late")
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/partial", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "started", w.Body.String())
}

func TestTimeout(t *testing.T) {
	t.Run("sets a deadline", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(time.Minute))
		router.GET("/test", func(c *gin.Context) {
			_, ok := c.Request.Context().Deadline()
			assert.True(t, ok)
			c.Status(http.StatusOK)
		})

		assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
	})

	t.Run("zero disables", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(0))
		router.GET("/test", func(c *gin.Context) {
			_, ok := c.Request.Context().Deadline()
			assert.False(t, ok)
			c.Status(http.StatusOK)
		})

		serve(router, httptest.NewRequest(http.MethodGet, "/test", nil))
	})

	t.Run("expired handler without a response gets 504", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/slow", func(c *gin.Context) {
			<-c.Request.Context().Done()
		})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrorCodeTimeout)
	})

	t.Run("response already written is kept", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/slow", func(c *gin.Context) {
			c.String(http.StatusOK, "done")
			<-c.Request.Context().Done()
		})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "done", w.Body.String())
	})
}
