package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext assigns request and trace ids, preferring client-sent ids and
// then the active span, and echoes both as response headers.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = strings.TrimSpace(c.GetHeader(headerTraceID))
		}
		if traceID == "" || len(traceID) > 128 {
			traceID = uuid.NewString()
		}
		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}
