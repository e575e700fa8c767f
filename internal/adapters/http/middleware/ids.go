// Package middleware provides the gin middleware chain of the quote board.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/quoteboard/internal/platform/logging"
)

const (
	// HeaderRequestID identifies one inbound request.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID identifies a whole transaction across services.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyRequestID is the gin context key of the request id.
	ContextKeyRequestID = "request_id"

	// ContextKeyCorrelationID is the gin context key of the correlation id.
	ContextKeyCorrelationID = "correlation_id"
)

type idSpec struct {
	header   string
	ginKey   string
	withID   func(ctx context.Context, id string) context.Context
	withAttr func(ctx context.Context, id string) context.Context
}

// RequestID takes the X-Request-ID header or generates one. The id is
// echoed in the response, stored in the gin and request contexts and added
// to the request logger.
func RequestID() gin.HandlerFunc {
	return idMiddleware(idSpec{
		header:   HeaderRequestID,
		ginKey:   ContextKeyRequestID,
		withID:   ContextWithRequestID,
		withAttr: logging.WithRequestID,
	})
}

// CorrelationID is RequestID for X-Correlation-ID. An inbound value is
// propagated unchanged; without one this request starts the transaction.
func CorrelationID() gin.HandlerFunc {
	return idMiddleware(idSpec{
		header:   HeaderCorrelationID,
		ginKey:   ContextKeyCorrelationID,
		withID:   ContextWithCorrelationID,
		withAttr: logging.WithCorrelationID,
	})
}

func idMiddleware(spec idSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(spec.header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(spec.ginKey, id)
		c.Header(spec.header, id)

		ctx := spec.withAttr(spec.withID(c.Request.Context(), id), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the request id, or "" outside the middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// GetCorrelationID returns the correlation id, or "" outside the middleware.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}
