package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/galaxychat-backend/internal/data/db"
	types "github.com/yungbote/galaxychat-backend/internal/domain"
	domainchat "github.com/yungbote/galaxychat-backend/internal/domain/chat"
	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// ListChatsOptions selects one history page. At most one cursor may be set.
type ListChatsOptions struct {
	Limit int
	// EndingBefore returns chats strictly older than the referenced chat.
	EndingBefore string
	// StartingAfter returns chats strictly newer than the referenced chat.
	StartingAfter string
}

type ChatRepo interface {
	// CreateIfAbsent inserts c unless a chat with the same id exists. It returns the
	// stored row and whether this call created it.
	CreateIfAbsent(dbc dbctx.Context, c *types.Chat) (*types.Chat, bool, error)
	GetByID(dbc dbctx.Context, id string) (*types.Chat, error)
	ListByUser(dbc dbctx.Context, userID string, opts ListChatsOptions) ([]*types.Chat, bool, error)
	UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) (*types.Chat, error)
	UpdateLastContext(dbc dbctx.Context, id string, usage datatypes.JSON) error
	// Delete removes the chat and all of its messages in one transaction.
	Delete(dbc dbctx.Context, id string) (*types.Chat, error)
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
	return &chatRepo{db: db, log: baseLog.With("repo", "ChatRepo")}
}

func (r *chatRepo) CreateIfAbsent(dbc dbctx.Context, c *types.Chat) (*types.Chat, bool, error) {
	if c == nil || strings.TrimSpace(c.ID) == "" {
		return nil, false, fmt.Errorf("missing chat id")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return nil, false, fmt.Errorf("missing user_id")
	}
	if existing, err := r.GetByID(dbc, c.ID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	if c.Visibility == "" {
		c.Visibility = domainchat.VisibilityPrivate
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil && !db.IsUniqueViolation(res.Error) {
		return nil, false, fmt.Errorf("create chat: %w", res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return c, true, nil
	}
	// lost the race to a concurrent creator
	existing, err := r.GetByID(dbc, c.ID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("create chat %s: row missing after conflict", c.ID)
	}
	return existing, false, nil
}

func (r *chatRepo) GetByID(dbc dbctx.Context, id string) (*types.Chat, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("missing chat id")
	}
	var out []*types.Chat
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *chatRepo) ListByUser(dbc dbctx.Context, userID string, opts ListChatsOptions) ([]*types.Chat, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, false, fmt.Errorf("missing user_id")
	}
	if opts.EndingBefore != "" && opts.StartingAfter != "" {
		return nil, false, fmt.Errorf("only one cursor may be set: %w", pkgerrors.ErrInvalidArgument)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	q := dbc.DB(r.db).Model(&types.Chat{}).Where("user_id = ?", userID)
	ascending := false
	cursorID := opts.EndingBefore
	if opts.StartingAfter != "" {
		cursorID = opts.StartingAfter
		ascending = true
	}
	if cursorID != "" {
		var cursor []*types.Chat
		if err := dbc.DB(r.db).Where("id = ? AND user_id = ?", cursorID, userID).Limit(1).Find(&cursor).Error; err != nil {
			return nil, false, err
		}
		if len(cursor) == 0 {
			return nil, false, fmt.Errorf("cursor chat %s: %w", cursorID, pkgerrors.ErrNotFound)
		}
		c := cursor[0]
		if ascending {
			q = q.Where("(created_at > ? OR (created_at = ? AND id > ?))", c.CreatedAt, c.CreatedAt, c.ID)
		} else {
			q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
		}
	}
	if ascending {
		q = q.Order("created_at ASC").Order("id ASC")
	} else {
		q = q.Order("created_at DESC").Order("id DESC")
	}

	var out []*types.Chat
	if err := q.Limit(limit + 1).Find(&out).Error; err != nil {
		return nil, false, err
	}
	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	if ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, hasMore, nil
}

func (r *chatRepo) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) (*types.Chat, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("missing chat id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	res := dbc.DB(r.db).Model(&types.Chat{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("chat %s: %w", id, pkgerrors.ErrNotFound)
	}
	return r.GetByID(dbc, id)
}

func (r *chatRepo) UpdateLastContext(dbc dbctx.Context, id string, usage datatypes.JSON) error {
	if len(usage) == 0 {
		return fmt.Errorf("missing usage")
	}
	_, err := r.UpdateFields(dbc, id, map[string]interface{}{"last_context": usage})
	return err
}

func (r *chatRepo) Delete(dbc dbctx.Context, id string) (*types.Chat, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("missing chat id")
	}
	var deleted *types.Chat
	run := func(tx *gorm.DB) error {
		var rows []*types.Chat
		if err := tx.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("chat %s: %w", id, pkgerrors.ErrNotFound)
		}
		if err := tx.Where("chat_id = ?", id).Delete(&types.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&types.Chat{}).Error; err != nil {
			return fmt.Errorf("delete chat: %w", err)
		}
		deleted = rows[0]
		return nil
	}
	var err error
	if dbc.Tx != nil {
		err = run(dbc.DB(r.db))
	} else {
		err = dbc.DB(r.db).Transaction(run)
	}
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete chat %s: %w", id, err)
	}
	return deleted, nil
}
