package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/galaxychat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/galaxychat-backend/internal/http/middleware"
	"github.com/yungbote/galaxychat-backend/internal/observability"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log          *logger.Logger
	ServiceName  string
	AllowOrigins []string
	Metrics      *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware
	ChatLimiter    *httpMW.UserLimiter

	HealthHandler *httpH.HealthHandler
	ChatHandler   *httpH.ChatHandler
	MediaHandler  *httpH.MediaHandler
	ModelsHandler *httpH.ModelsHandler
	UserHandler   *httpH.UserHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Chat
	if cfg.ChatHandler != nil {
		api.POST("/chat", httpMW.RateLimit(cfg.ChatLimiter, cfg.Metrics.IncRateLimited), cfg.ChatHandler.SubmitTurn)
		api.DELETE("/chat", cfg.ChatHandler.DeleteChat)
		api.GET("/chat/:id", cfg.ChatHandler.GetChat)
		api.PATCH("/chat/:id", cfg.ChatHandler.UpdateChat)
		api.GET("/history", cfg.ChatHandler.ListHistory)
		api.DELETE("/messages/:id/trailing", cfg.ChatHandler.DeleteTrailingMessages)
		api.GET("/library", cfg.ChatHandler.ListMedia)
	}

	// Media
	if cfg.MediaHandler != nil {
		api.POST("/upload", cfg.MediaHandler.Upload)
		api.DELETE("/upload", cfg.MediaHandler.Delete)
	}

	if cfg.ModelsHandler != nil {
		api.GET("/models", cfg.ModelsHandler.List)
	}

	// User (Me)
	if cfg.UserHandler != nil {
		api.GET("/me", cfg.UserHandler.GetMe)
	}

	return r
}
