package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/galaxychat-backend/internal/data/repos"
	types "github.com/yungbote/galaxychat-backend/internal/domain"
	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

type UserService interface {
	// EnsureFromContext upserts the profile of the authenticated caller. Repeated calls
	// for the same user within a short window skip the database.
	EnsureFromContext(ctx context.Context) error
	GetMe(dbc dbctx.Context) (*types.User, error)
}

type userService struct {
	log      *logger.Logger
	userRepo repos.UserRepo

	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
	window    time.Duration
	now       func() time.Time
}

func NewUserService(log *logger.Logger, userRepo repos.UserRepo) UserService {
	return &userService{
		log:      log.With("service", "UserService"),
		userRepo: userRepo,
		seen:     map[string]time.Time{},
		window:   10 * time.Minute,
		now:      time.Now,
	}
}

func (us *userService) EnsureFromContext(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || strings.TrimSpace(rd.UserID) == "" {
		return pkgerrors.ErrUnauthorized
	}
	if us.recentlyEnsured(rd.UserID) {
		return nil
	}
	if _, err := us.userRepo.Ensure(dbctx.Context{Ctx: ctx}, &types.User{
		ID:       rd.UserID,
		Email:    rd.Email,
		Name:     rd.Name,
		ImageURL: rd.ImageURL,
	}); err != nil {
		return fmt.Errorf("ensure user profile: %w", err)
	}
	us.mu.Lock()
	us.seen[rd.UserID] = us.now()
	us.mu.Unlock()
	return nil
}

func (us *userService) recentlyEnsured(userID string) bool {
	us.mu.Lock()
	defer us.mu.Unlock()
	now := us.now()
	if now.Sub(us.lastSweep) > us.window {
		for id, at := range us.seen {
			if now.Sub(at) > us.window {
				delete(us.seen, id)
			}
		}
		us.lastSweep = now
	}
	at, ok := us.seen[userID]
	if !ok {
		return false
	}
	if now.Sub(at) > us.window {
		delete(us.seen, userID)
		return false
	}
	return true
}

func (us *userService) GetMe(dbc dbctx.Context) (*types.User, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || strings.TrimSpace(rd.UserID) == "" {
		us.log.Warn("Request data not set in context")
		return nil, pkgerrors.ErrUnauthorized
	}
	u, err := us.userRepo.GetByID(dbc, rd.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", rd.UserID, pkgerrors.ErrNotFound)
	}
	return u, nil
}
