package steps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/galaxychat-backend/internal/data/repos"
	types "github.com/yungbote/galaxychat-backend/internal/domain"
	domainchat "github.com/yungbote/galaxychat-backend/internal/domain/chat"
	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/apierr"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	DefaultHistoryPageSize = 10
	MaxHistoryPageSize     = 100
)

type ChatsDeps struct {
	Log      *logger.Logger
	Chats    repos.ChatRepo
	Messages repos.MessageRepo
}

func (d ChatsDeps) ok() bool {
	return d.Log != nil && d.Chats != nil && d.Messages != nil
}

type ChatDetail struct {
	Chat     *types.Chat      `json:"chat"`
	Messages []*types.Message `json:"messages"`
}

// GetChat returns a chat with its messages. Private chats are visible to their owner
// only; public chats to any authenticated user.
func GetChat(ctx context.Context, deps ChatsDeps, userID, chatID string) (*ChatDetail, error) {
	if !deps.ok() {
		return nil, fmt.Errorf("chat get: missing deps")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.ErrUnauthorized
	}
	dbc := dbctx.Context{Ctx: ctx}
	c, err := deps.Chats.GetByID(dbc, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apierr.New(http.StatusNotFound, "Chat not found", pkgerrors.ErrNotFound)
	}
	if c.UserID != userID && c.Visibility != domainchat.VisibilityPublic {
		return nil, pkgerrors.ErrUnauthorized
	}
	msgs, err := deps.Messages.ListByChat(dbc, chatID, 0)
	if err != nil {
		return nil, err
	}
	return &ChatDetail{Chat: c, Messages: msgs}, nil
}

type UpdateChatInput struct {
	UserID     string
	ChatID     string
	Title      *string
	Visibility *types.Visibility
}

func UpdateChat(ctx context.Context, deps ChatsDeps, in UpdateChatInput) (*types.Chat, error) {
	if !deps.ok() {
		return nil, fmt.Errorf("chat update: missing deps")
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = FormatTitle(*in.Title)
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return nil, apierr.New(http.StatusBadRequest, "Invalid request body", pkgerrors.ErrInvalidArgument)
		}
		updates["visibility"] = *in.Visibility
	}
	if len(updates) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "Invalid request body", pkgerrors.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := ownedChat(dbc, deps.Chats, in.UserID, in.ChatID); err != nil {
		return nil, err
	}
	return deps.Chats.UpdateFields(dbc, in.ChatID, updates)
}

// DeleteChat removes an owned chat and its messages. A missing chat is reported as
// unauthorized so that ids cannot be probed.
func DeleteChat(ctx context.Context, deps ChatsDeps, userID, chatID string) (*types.Chat, error) {
	if !deps.ok() {
		return nil, fmt.Errorf("chat delete: missing deps")
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, apierr.New(http.StatusUnauthorized, "Invalid Chat", pkgerrors.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := ownedChat(dbc, deps.Chats, userID, chatID); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, pkgerrors.ErrUnauthorized
		}
		return nil, err
	}
	deleted, err := deps.Chats.Delete(dbc, chatID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, pkgerrors.ErrUnauthorized
		}
		return nil, err
	}
	deps.Log.Info("chat deleted", "chat_id", chatID, "user_id", userID)
	return deleted, nil
}

type HistoryInput struct {
	UserID        string
	Limit         int
	StartingAfter string
	EndingBefore  string
}

type HistoryPage struct {
	Chats   []*types.Chat `json:"chats"`
	HasMore bool          `json:"hasMore"`
}

func ListHistory(ctx context.Context, deps ChatsDeps, in HistoryInput) (*HistoryPage, error) {
	if !deps.ok() {
		return nil, fmt.Errorf("chat history: missing deps")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, pkgerrors.ErrUnauthorized
	}
	if in.StartingAfter != "" && in.EndingBefore != "" {
		return nil, apierr.New(http.StatusBadRequest, "Only one of starting_after or ending_before can be provided.", pkgerrors.ErrInvalidArgument)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultHistoryPageSize
	}
	if limit > MaxHistoryPageSize {
		limit = MaxHistoryPageSize
	}
	chats, hasMore, err := deps.Chats.ListByUser(dbctx.Context{Ctx: ctx}, in.UserID, repos.ListChatsOptions{
		Limit:         limit,
		StartingAfter: in.StartingAfter,
		EndingBefore:  in.EndingBefore,
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, apierr.New(http.StatusNotFound, "Chat not found", err)
		}
		return nil, err
	}
	if chats == nil {
		chats = []*types.Chat{}
	}
	return &HistoryPage{Chats: chats, HasMore: hasMore}, nil
}

// DeleteTrailingMessages deletes the message and every later one in its chat. It backs
// message editing and regeneration.
func DeleteTrailingMessages(ctx context.Context, deps ChatsDeps, userID, messageID string) (int64, error) {
	if !deps.ok() {
		return 0, fmt.Errorf("chat trailing delete: missing deps")
	}
	if strings.TrimSpace(userID) == "" {
		return 0, pkgerrors.ErrUnauthorized
	}
	dbc := dbctx.Context{Ctx: ctx}
	msg, err := deps.Messages.GetByID(dbc, messageID)
	if err != nil {
		return 0, err
	}
	if msg == nil {
		return 0, apierr.New(http.StatusNotFound, "Message not found", pkgerrors.ErrNotFound)
	}
	if _, err := ownedChat(dbc, deps.Chats, userID, msg.ChatID); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return 0, apierr.New(http.StatusNotFound, "Chat not found", err)
		}
		return 0, err
	}
	n, err := deps.Messages.DeleteTrailing(dbc, msg.ChatID, msg.CreatedAt, msg.Seq)
	if err != nil {
		return 0, fmt.Errorf("delete trailing messages: %w", err)
	}
	deps.Log.Info("trailing messages deleted", "chat_id", msg.ChatID, "from_message_id", messageID, "deleted", n)
	return n, nil
}

// ListMedia returns the caller's messages that carry file parts, newest first.
func ListMedia(ctx context.Context, deps ChatsDeps, userID string) ([]*types.Message, error) {
	if !deps.ok() {
		return nil, fmt.Errorf("chat library: missing deps")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.ErrUnauthorized
	}
	msgs, err := deps.Messages.ListMediaByUser(dbctx.Context{Ctx: ctx}, userID, 0)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "Failed to fetch media messages", err)
	}
	if msgs == nil {
		msgs = []*types.Message{}
	}
	return msgs, nil
}

func ownedChat(dbc dbctx.Context, chats repos.ChatRepo, userID, chatID string) (*types.Chat, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.ErrUnauthorized
	}
	c, err := chats.GetByID(dbc, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("chat %s: %w", chatID, pkgerrors.ErrNotFound)
	}
	if c.UserID != userID {
		return nil, pkgerrors.ErrUnauthorized
	}
	return c, nil
}
