package chat

import (
	"context"
	"time"

	"github.com/yungbote/galaxychat-backend/internal/data/repos"
	types "github.com/yungbote/galaxychat-backend/internal/domain"
	"github.com/yungbote/galaxychat-backend/internal/llm"
	"github.com/yungbote/galaxychat-backend/internal/memory"
	"github.com/yungbote/galaxychat-backend/internal/modules/chat/steps"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
	"github.com/yungbote/galaxychat-backend/internal/platform/tasks"
	"github.com/yungbote/galaxychat-backend/internal/stream"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Chats    repos.ChatRepo
	Messages repos.MessageRepo

	Model    llm.Model
	Memory   memory.Store
	Catalog  steps.UsageEnricher
	Tasks    *tasks.Registry
	Observer steps.TurnObserver

	TitleCompleter llm.Completer
	TitleModel     string
	TitleTimeout   time.Duration

	HistoryLimit   int
	TurnTimeout    time.Duration
	MemoryTimeout  time.Duration
	PersistTimeout time.Duration
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	SubmitTurnInput = steps.SubmitTurnInput
	UpdateChatInput = steps.UpdateChatInput
	HistoryInput    = steps.HistoryInput
	HistoryPage     = steps.HistoryPage
	ChatDetail      = steps.ChatDetail
)

func (u Usecases) SubmitTurn(ctx context.Context, in SubmitTurnInput, w stream.Writer) error {
	return steps.SubmitTurn(ctx, steps.SubmitTurnDeps{
		Log:      u.deps.Log,
		Chats:    u.deps.Chats,
		Messages: u.deps.Messages,
		Model:    u.deps.Model,
		Memory:   u.deps.Memory,
		Catalog:  u.deps.Catalog,
		Tasks:    u.deps.Tasks,
		Observer: u.deps.Observer,
		Title: steps.TitleDeps{
			Log:       u.deps.Log,
			Completer: u.deps.TitleCompleter,
			Model:     u.deps.TitleModel,
			Timeout:   u.deps.TitleTimeout,
		},
		HistoryLimit:   u.deps.HistoryLimit,
		TurnTimeout:    u.deps.TurnTimeout,
		MemoryTimeout:  u.deps.MemoryTimeout,
		PersistTimeout: u.deps.PersistTimeout,
	}, in, w)
}

func (u Usecases) chatsDeps() steps.ChatsDeps {
	return steps.ChatsDeps{Log: u.deps.Log, Chats: u.deps.Chats, Messages: u.deps.Messages}
}

func (u Usecases) GetChat(ctx context.Context, userID, chatID string) (*ChatDetail, error) {
	return steps.GetChat(ctx, u.chatsDeps(), userID, chatID)
}

func (u Usecases) UpdateChat(ctx context.Context, in UpdateChatInput) (*types.Chat, error) {
	return steps.UpdateChat(ctx, u.chatsDeps(), in)
}

func (u Usecases) DeleteChat(ctx context.Context, userID, chatID string) (*types.Chat, error) {
	return steps.DeleteChat(ctx, u.chatsDeps(), userID, chatID)
}

func (u Usecases) ListHistory(ctx context.Context, in HistoryInput) (*HistoryPage, error) {
	return steps.ListHistory(ctx, u.chatsDeps(), in)
}

func (u Usecases) DeleteTrailingMessages(ctx context.Context, userID, messageID string) (int64, error) {
	return steps.DeleteTrailingMessages(ctx, u.chatsDeps(), userID, messageID)
}

func (u Usecases) ListMedia(ctx context.Context, userID string) ([]*types.Message, error) {
	return steps.ListMedia(ctx, u.chatsDeps(), userID)
}
