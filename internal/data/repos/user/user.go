package user

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/galaxychat-backend/internal/data/db"
	types "github.com/yungbote/galaxychat-backend/internal/domain"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

type UserRepo interface {
	// Ensure inserts u unless a row with the same id exists and returns the stored row.
	Ensure(dbc dbctx.Context, u *types.User) (*types.User, error)
	GetByID(dbc dbctx.Context, id string) (*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Ensure(dbc dbctx.Context, u *types.User) (*types.User, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return nil, fmt.Errorf("missing user id")
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	err := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(u).Error
	if err != nil && !db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	out, err := r.GetByID(dbc, u.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("ensure user %s: row missing after upsert", u.ID)
	}
	return out, nil
}

func (r *userRepo) GetByID(dbc dbctx.Context, id string) (*types.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("missing user id")
	}
	var out []*types.User
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}
