package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

// RequestLogger writes one access log line per request, leveled by status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		ctx := c.Request.Context()
		if td := ctxutil.GetTraceData(ctx); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.UserID != "" {
			fields = append(fields, "user_id", rd.UserID)
			if rd.SessionID != "" {
				fields = append(fields, "session_id", rd.SessionID)
			}
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
