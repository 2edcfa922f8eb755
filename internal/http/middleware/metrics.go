package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/galaxychat-backend/internal/observability"
)

// Metrics instruments HTTP request counts and latency; a nil registry disables it.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.APIInflightInc()
		defer m.APIInflightDec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
