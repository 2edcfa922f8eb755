package chat

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/galaxychat-backend/internal/domain"
	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	DefaultMessageLimit = 100
	MaxMessageLimit     = 500
	MaxMediaLimit       = 200
)

type MessageRepo interface {
	// Create appends rows to chatID in order. Rows whose id already exists are skipped.
	// Seq and CreatedAt are assigned here so that both strictly increase per chat.
	Create(dbc dbctx.Context, chatID string, rows []*types.Message) ([]*types.Message, error)
	GetByID(dbc dbctx.Context, id string) (*types.Message, error)
	// ListByChat returns up to limit messages oldest first.
	ListByChat(dbc dbctx.Context, chatID string, limit int) ([]*types.Message, error)
	// DeleteTrailing removes the message identified by (createdAt, seq) and every later
	// one in the chat.
	DeleteTrailing(dbc dbctx.Context, chatID string, createdAt time.Time, seq int64) (int64, error)
	// ListMediaByUser returns the user's messages that carry a file part, newest first.
	ListMediaByUser(dbc dbctx.Context, userID string, limit int) ([]*types.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, chatID string, rows []*types.Message) ([]*types.Message, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("missing chat_id")
	}
	if len(rows) == 0 {
		return []*types.Message{}, nil
	}
	for i, m := range rows {
		if m == nil || strings.TrimSpace(m.ID) == "" {
			return nil, fmt.Errorf("rows[%d]: missing message id", i)
		}
		if !m.Role.Valid() {
			return nil, fmt.Errorf("rows[%d]: invalid role %q", i, m.Role)
		}
		if len(m.Parts) == 0 {
			return nil, fmt.Errorf("rows[%d]: message has no parts", i)
		}
	}

	var created []*types.Message
	run := func(tx *gorm.DB) error {
		ids := make([]string, 0, len(rows))
		for _, m := range rows {
			ids = append(ids, m.ID)
		}
		var existing []string
		if err := tx.Model(&types.Message{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, id := range existing {
			seen[id] = true
		}
		pending := make([]*types.Message, 0, len(rows))
		for _, m := range rows {
			if !seen[m.ID] {
				seen[m.ID] = true
				pending = append(pending, m)
			}
		}
		if len(pending) == 0 {
			return nil
		}

		n := int64(len(pending))
		res := tx.Model(&types.Chat{}).Where("id = ?", chatID).
			UpdateColumn("next_seq", gorm.Expr("next_seq + ?", n))
		if res.Error != nil {
			return fmt.Errorf("allocate seq: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("chat %s: %w", chatID, pkgerrors.ErrNotFound)
		}
		var next []int64
		if err := tx.Model(&types.Chat{}).Where("id = ?", chatID).Pluck("next_seq", &next).Error; err != nil {
			return fmt.Errorf("read seq: %w", err)
		}
		if len(next) == 0 {
			return fmt.Errorf("chat %s: %w", chatID, pkgerrors.ErrNotFound)
		}
		base := next[0] - n

		var last []*types.Message
		if err := tx.Where("chat_id = ?", chatID).Order("seq DESC").Limit(1).Find(&last).Error; err != nil {
			return fmt.Errorf("latest message: %w", err)
		}
		prev := time.Time{}
		if len(last) > 0 {
			prev = last[0].CreatedAt.UTC()
		}

		now := time.Now().UTC().Truncate(time.Microsecond)
		for i, m := range pending {
			m.ChatID = chatID
			m.Seq = base + int64(i) + 1
			ts := now
			if !ts.After(prev) {
				ts = prev.Add(time.Microsecond)
			}
			m.CreatedAt = ts
			m.UpdatedAt = ts
			prev = ts
			if len(m.Attachments) == 0 {
				m.Attachments = datatypes.JSON([]byte("[]"))
			}
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pending).Error; err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
		created = pending
		return nil
	}

	var err error
	if dbc.Tx != nil {
		err = run(dbc.DB(r.db))
	} else {
		err = dbc.DB(r.db).Transaction(run)
	}
	if err != nil {
		return nil, err
	}
	if created == nil {
		created = []*types.Message{}
	}
	return created, nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, id string) (*types.Message, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("missing message id")
	}
	var out []*types.Message
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *messageRepo) ListByChat(dbc dbctx.Context, chatID string, limit int) ([]*types.Message, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("missing chat_id")
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}
	// newest `limit` messages, returned oldest-first
	var out []*types.Message
	if err := dbc.DB(r.db).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (r *messageRepo) DeleteTrailing(dbc dbctx.Context, chatID string, createdAt time.Time, seq int64) (int64, error) {
	if strings.TrimSpace(chatID) == "" {
		return 0, fmt.Errorf("missing chat_id")
	}
	res := dbc.DB(r.db).
		Where("chat_id = ?", chatID).
		Where("(created_at > ? OR (created_at = ? AND seq >= ?))", createdAt, createdAt, seq).
		Delete(&types.Message{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *messageRepo) ListMediaByUser(dbc dbctx.Context, userID string, limit int) ([]*types.Message, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > MaxMediaLimit {
		limit = MaxMediaLimit
	}
	txx := dbc.DB(r.db)
	var hasFile string
	switch txx.Dialector.Name() {
	case "postgres":
		hasFile = `message.parts @> '[{"type":"file"}]'`
	default:
		hasFile = `EXISTS (SELECT 1 FROM json_each(message.parts) AS p WHERE json_extract(p.value, '$.type') = 'file')`
	}
	var out []*types.Message
	if err := txx.
		Joins("JOIN chat ON chat.id = message.chat_id").
		Where("chat.user_id = ?", userID).
		Where(hasFile).
		Order("message.created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
