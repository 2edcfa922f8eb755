package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/galaxychat-backend/internal/data/repos"
	chatmod "github.com/yungbote/galaxychat-backend/internal/modules/chat"
	"github.com/yungbote/galaxychat-backend/internal/observability"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
	"github.com/yungbote/galaxychat-backend/internal/platform/tasks"
	"github.com/yungbote/galaxychat-backend/internal/services"
)

type Repos struct {
	User    repos.UserRepo
	Chat    repos.ChatRepo
	Message repos.MessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:    repos.NewUserRepo(db, log),
		Chat:    repos.NewChatRepo(db, log),
		Message: repos.NewMessageRepo(db, log),
	}
}

type Services struct {
	Auth   services.AuthService
	User   services.UserService
	Models services.ModelService
	Media  services.MediaService
	Chat   chatmod.Usecases
}

func wireServices(ctx context.Context, log *logger.Logger, cfg Config, r Repos, c Clients, metrics *observability.Metrics, registry *tasks.Registry) (Services, error) {
	log.Info("Wiring services...")

	auth, err := services.NewAuthService(ctx, log, services.AuthConfig{
		JWKSURL:   cfg.Auth.JWKSURL,
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
		JWTSecret: cfg.Auth.JWTSecret,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}
	models, err := services.NewModelService(nil)
	if err != nil {
		return Services{}, fmt.Errorf("init model service: %w", err)
	}

	chat := chatmod.New(chatmod.UsecasesDeps{
		Log:            log.With("service", "ChatUsecases"),
		Chats:          r.Chat,
		Messages:       r.Message,
		Model:          c.Model,
		Memory:         c.Memory,
		Catalog:        c.Catalog,
		Tasks:          registry,
		Observer:       metrics,
		TitleCompleter: c.Title,
		TitleModel:     cfg.TitleModel,
		TitleTimeout:   cfg.TitleTimeout,
		HistoryLimit:   cfg.HistoryLimit,
		TurnTimeout:    cfg.TurnTimeout,
		MemoryTimeout:  cfg.Memory.Timeout,
	})

	return Services{
		Auth:   auth,
		User:   services.NewUserService(log, r.User),
		Models: models,
		Media:  services.NewMediaService(log, c.Media, services.DefaultUploadLimit),
		Chat:   chat,
	}, nil
}
