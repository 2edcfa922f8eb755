package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
	"github.com/yungbote/galaxychat-backend/internal/domain/user"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, id string) *user.User {
	tb.Helper()
	now := time.Now().UTC()
	u := &user.User{ID: id, Email: id + "@example.com", CreatedAt: now, UpdatedAt: now}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedChat inserts a chat with an explicit creation time so pagination tests can
// control ordering.
func SeedChat(tb testing.TB, ctx context.Context, tx *gorm.DB, userID string, createdAt time.Time) *chat.Chat {
	tb.Helper()
	c := &chat.Chat{
		ID:         "chat-" + uuid.NewString(),
		UserID:     userID,
		Title:      "chat",
		Visibility: chat.VisibilityPrivate,
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  createdAt.UTC(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chat: %v", err)
	}
	return c
}

func TextMessage(role chat.Role, text string) *chat.Message {
	return &chat.Message{
		ID:          uuid.NewString(),
		Role:        role,
		Parts:       chat.Parts{chat.TextPart{Text: text}},
		Attachments: datatypes.JSON([]byte("[]")),
	}
}
