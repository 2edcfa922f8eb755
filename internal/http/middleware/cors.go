package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var DefaultAllowOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// CORS allows the web client origins; an empty list falls back to local dev origins.
func CORS(allowOrigins []string) gin.HandlerFunc {
	if len(allowOrigins) == 0 {
		allowOrigins = DefaultAllowOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", headerRequestID, headerTraceID},
		ExposeHeaders:    []string{headerRequestID, headerTraceID, "X-Vercel-AI-UI-Message-Stream"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
