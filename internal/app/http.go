package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/galaxychat-backend/internal/http"
	httpH "github.com/yungbote/galaxychat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/galaxychat-backend/internal/http/middleware"
	"github.com/yungbote/galaxychat-backend/internal/observability"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

type Middleware struct {
	Auth        *httpMW.AuthMiddleware
	ChatLimiter *httpMW.UserLimiter
}

type Handlers struct {
	Health *httpH.HealthHandler
	Chat   *httpH.ChatHandler
	Media  *httpH.MediaHandler
	Models *httpH.ModelsHandler
	User   *httpH.UserHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) (Handlers, error) {
	log.Info("Wiring handlers...")
	sqlDB, err := db.DB()
	if err != nil {
		return Handlers{}, fmt.Errorf("database handle: %w", err)
	}
	return Handlers{
		Health: httpH.NewHealthHandler(sqlDB),
		Chat:   httpH.NewChatHandler(log, services.Chat),
		Media:  httpH.NewMediaHandler(log, services.Media),
		Models: httpH.NewModelsHandler(services.Models),
		User:   httpH.NewUserHandler(log, services.User),
	}, nil
}

func wireMiddleware(log *logger.Logger, cfg Config, services Services) Middleware {
	log.Info("Wiring middleware...")
	var limiter *httpMW.UserLimiter
	if cfg.ChatRateLimitRPS > 0 {
		limiter = httpMW.NewUserLimiter(cfg.ChatRateLimitRPS, cfg.ChatRateLimitBurst)
	} else {
		log.Warn("Chat rate limit disabled")
	}
	return Middleware{
		Auth:        httpMW.NewAuthMiddleware(log, services.Auth, services.User),
		ChatLimiter: limiter,
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(cfg.HTTPAddr, http.RouterConfig{
		Log:            log,
		ServiceName:    cfg.ServiceName,
		AllowOrigins:   cfg.CORSAllowOrigins,
		Metrics:        metrics,
		AuthMiddleware: middleware.Auth,
		ChatLimiter:    middleware.ChatLimiter,
		HealthHandler:  handlers.Health,
		ChatHandler:    handlers.Chat,
		MediaHandler:   handlers.Media,
		ModelsHandler:  handlers.Models,
		UserHandler:    handlers.User,
	})
}
