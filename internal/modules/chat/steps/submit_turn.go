package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/galaxychat-backend/internal/data/repos"
	types "github.com/yungbote/galaxychat-backend/internal/domain"
	domainchat "github.com/yungbote/galaxychat-backend/internal/domain/chat"
	"github.com/yungbote/galaxychat-backend/internal/llm"
	"github.com/yungbote/galaxychat-backend/internal/memory"
	"github.com/yungbote/galaxychat-backend/internal/platform/apierr"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
	"github.com/yungbote/galaxychat-backend/internal/platform/tasks"
	"github.com/yungbote/galaxychat-backend/internal/stream"
)

const (
	DefaultTurnTimeout    = 30 * time.Second
	DefaultMemoryTimeout  = 2 * time.Second
	DefaultPersistTimeout = 30 * time.Second

	usageDataName = "usage"
)

var tracer = otel.Tracer("github.com/yungbote/galaxychat-backend/internal/modules/chat")

// UsageEnricher adds catalog data (context limits, cost) to raw token usage.
type UsageEnricher interface {
	Enrich(ctx context.Context, u types.Usage, modelID string) types.Usage
}

// TurnObserver receives turn outcomes and memory degradations for metrics.
type TurnObserver interface {
	ObserveTurn(model, outcome string, dur time.Duration, usage types.Usage)
	IncMemoryDegraded(op string)
}

type noopObserver struct{}

func (noopObserver) ObserveTurn(string, string, time.Duration, types.Usage) {}
func (noopObserver) IncMemoryDegraded(string)                               {}

type SubmitTurnDeps struct {
	Log      *logger.Logger
	Chats    repos.ChatRepo
	Messages repos.MessageRepo
	Model    llm.Model
	Memory   memory.Store
	Catalog  UsageEnricher
	Tasks    *tasks.Registry
	Title    TitleDeps
	Observer TurnObserver

	HistoryLimit   int
	TurnTimeout    time.Duration
	MemoryTimeout  time.Duration
	PersistTimeout time.Duration
}

type SubmitTurnInput struct {
	UserID     string
	ChatID     string
	Message    *types.Message
	ModelID    string
	WebSearch  bool
	Visibility types.Visibility
}

// SubmitTurn runs one chat turn and streams the assistant reply into w.
//
// Errors returned before the first event is written carry an *apierr.Error and no
// bytes have reached w. Once streaming has begun, failures end the stream with a
// single generic error event and the returned error is for logging only.
func SubmitTurn(ctx context.Context, deps SubmitTurnDeps, in SubmitTurnInput, w stream.Writer) error {
	if deps.Log == nil || deps.Chats == nil || deps.Messages == nil || deps.Model == nil || deps.Tasks == nil {
		return fmt.Errorf("chat submit turn: missing deps")
	}
	if w == nil {
		return fmt.Errorf("chat submit turn: missing stream writer")
	}
	if deps.Memory == nil {
		deps.Memory = memory.Noop{}
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if strings.TrimSpace(in.UserID) == "" {
		return apierr.New(http.StatusUnauthorized, "Unauthorized", nil)
	}
	if err := validateTurnInput(in); err != nil {
		return apierr.New(http.StatusBadRequest, "Invalid request body", err)
	}

	turnTimeout := deps.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	turnCtx, span := tracer.Start(turnCtx, "chat.submit_turn")
	defer span.End()
	span.SetAttributes(attribute.String("chat.id", in.ChatID))

	log := deps.Log.With("chat_id", in.ChatID, "user_id", in.UserID, "message_id", in.Message.ID)

	history, mem, err := prepareTurn(turnCtx, deps, in, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare")
		return err
	}

	modelID := SelectModel(in.ModelID, in.WebSearch)
	span.SetAttributes(attribute.String("chat.model", modelID))
	started := time.Now()
	req := llm.Request{
		Model:    modelID,
		System:   SystemPrompt(mem),
		Messages: llm.FromMessages(append(history, in.Message)),
	}

	acc := stream.NewAccumulator(uuid.NewString)
	out := stream.Tee{w, acc}
	assistantID := uuid.NewString()

	usage, err := runModel(turnCtx, deps, req, assistantID, out)
	if err != nil {
		// Client aborts are not failures; nothing further is written or persisted.
		if ctx.Err() != nil {
			log.Info("chat turn cancelled by client", "model", modelID)
			deps.Observer.ObserveTurn(modelID, "cancelled", time.Since(started), types.Usage{})
			return ctx.Err()
		}
		log.Error("chat turn failed", "model", modelID, "error", err)
		deps.Observer.ObserveTurn(modelID, "error", time.Since(started), types.Usage{})
		span.RecordError(err)
		span.SetStatus(codes.Error, "model")
		if werr := out.Write(stream.Error{ErrorText: stream.GenericErrorText}); werr != nil {
			log.Warn("failed to write stream error event", "error", werr)
		}
		return fmt.Errorf("chat turn: %w", err)
	}

	if deps.Catalog != nil {
		usage = deps.Catalog.Enrich(turnCtx, usage, modelID)
	} else {
		usage = usage.Normalized()
	}
	if usage.ModelID == "" {
		usage.ModelID = modelID
	}

	data, err := stream.NewData(usageDataName, usage)
	if err == nil {
		err = out.Write(data)
	}
	if err == nil {
		err = out.Write(stream.Finish{})
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Info("chat turn cancelled by client before finish", "model", modelID)
			deps.Observer.ObserveTurn(modelID, "cancelled", time.Since(started), usage)
			return ctx.Err()
		}
		log.Warn("failed to write stream finish", "error", err)
		return fmt.Errorf("chat turn finish: %w", err)
	}

	deps.Observer.ObserveTurn(modelID, "ok", time.Since(started), usage)
	schedulePostCompletion(ctx, deps, in, acc, usage, log)
	return nil
}

func validateTurnInput(in SubmitTurnInput) error {
	if strings.TrimSpace(in.ChatID) == "" {
		return errors.New("missing chat id")
	}
	if in.Message == nil || strings.TrimSpace(in.Message.ID) == "" {
		return errors.New("missing message")
	}
	if in.Message.Role != domainchat.RoleUser {
		return fmt.Errorf("message role %q is not user", in.Message.Role)
	}
	if in.Visibility != "" && !in.Visibility.Valid() {
		return fmt.Errorf("invalid visibility %q", in.Visibility)
	}
	return domainchat.ValidateUserParts(in.Message.Parts)
}

// prepareTurn resolves the chat, loads history and memory, and persists the user
// message. Every error it returns is an *apierr.Error.
func prepareTurn(ctx context.Context, deps SubmitTurnDeps, in SubmitTurnInput, log *logger.Logger) ([]*types.Message, string, error) {
	ctx, span := tracer.Start(ctx, "chat.prepare")
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}
	existing, err := deps.Chats.GetByID(dbc, in.ChatID)
	if err != nil {
		return nil, "", apierr.New(http.StatusInternalServerError, "Internal server error", fmt.Errorf("load chat: %w", err))
	}
	if existing != nil && existing.UserID != in.UserID {
		return nil, "", apierr.New(http.StatusUnauthorized, "Unauthorized", nil)
	}
	if existing == nil {
		visibility := in.Visibility
		if visibility == "" {
			visibility = domainchat.VisibilityPrivate
		}
		created, _, err := deps.Chats.CreateIfAbsent(dbc, &types.Chat{
			ID:         in.ChatID,
			UserID:     in.UserID,
			Title:      GenerateTitle(ctx, deps.Title, in.Message),
			Visibility: visibility,
		})
		if err != nil {
			return nil, "", apierr.New(http.StatusInternalServerError, "Internal server error", fmt.Errorf("create chat: %w", err))
		}
		// a concurrent creator with another identity won the race
		if created.UserID != in.UserID {
			return nil, "", apierr.New(http.StatusUnauthorized, "Unauthorized", nil)
		}
	}

	memTimeout := deps.MemoryTimeout
	if memTimeout <= 0 {
		memTimeout = DefaultMemoryTimeout
	}

	var (
		history []*types.Message
		mem     string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := deps.Messages.ListByChat(dbctx.Context{Ctx: gctx}, in.ChatID, deps.HistoryLimit)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		history = rows
		return nil
	})
	g.Go(func() error {
		mctx, cancel := context.WithTimeout(gctx, memTimeout)
		defer cancel()
		found, err := deps.Memory.Search(mctx, in.UserID, in.Message.Parts.FirstText())
		if err != nil {
			log.Warn("memory search failed; continuing without memory", "error", err)
			deps.Observer.IncMemoryDegraded("search")
			return nil
		}
		mem = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, "", apierr.New(http.StatusInternalServerError, "Internal server error", err)
	}

	// a retried submission may already be stored
	filtered := history[:0:0]
	for _, m := range history {
		if m != nil && m.ID != in.Message.ID {
			filtered = append(filtered, m)
		}
	}

	if _, err := deps.Messages.Create(dbc, in.ChatID, []*types.Message{in.Message}); err != nil {
		return nil, "", apierr.New(http.StatusInternalServerError, "Internal server error", fmt.Errorf("persist user message: %w", err))
	}
	return filtered, mem, nil
}

func runModel(ctx context.Context, deps SubmitTurnDeps, req llm.Request, assistantID string, out stream.Writer) (types.Usage, error) {
	ctx, span := tracer.Start(ctx, "chat.model")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", req.Model))

	if err := out.Write(stream.Start{MessageID: assistantID}); err != nil {
		return types.Usage{}, err
	}
	usage, err := deps.Model.Stream(ctx, req, out.Write)
	if err != nil {
		span.RecordError(err)
		return types.Usage{}, err
	}
	span.SetAttributes(
		attribute.Int64("llm.input_tokens", usage.InputTokens),
		attribute.Int64("llm.output_tokens", usage.OutputTokens),
	)
	return usage, nil
}

// schedulePostCompletion hands persistence and memory capture to the task registry so
// that neither delays the response nor dies with the request.
func schedulePostCompletion(ctx context.Context, deps SubmitTurnDeps, in SubmitTurnInput, acc *stream.Accumulator, usage types.Usage, log *logger.Logger) {
	timeout := deps.PersistTimeout
	if timeout <= 0 {
		timeout = DefaultPersistTimeout
	}

	var assistant []*types.Message
	for _, m := range acc.Messages() {
		assistant = append(assistant, &types.Message{
			ID:    m.ID,
			Role:  m.Role,
			Parts: m.Parts,
		})
	}

	if err := deps.Tasks.Go(ctx, "chat.persist_assistant", timeout, func(tctx context.Context) error {
		return persistAssistant(tctx, deps, in.ChatID, assistant, usage)
	}); err != nil {
		log.Warn("assistant persistence not scheduled", "error", err)
	}

	entries := memory.EntriesFrom(append([]*types.Message{in.Message}, assistant...)...)
	if len(entries) == 0 {
		return
	}
	if err := deps.Tasks.Go(ctx, "chat.memory_add", timeout, func(tctx context.Context) error {
		if err := deps.Memory.Add(tctx, in.UserID, entries); err != nil {
			deps.Observer.IncMemoryDegraded("add")
			return err
		}
		return nil
	}); err != nil {
		log.Warn("memory capture not scheduled", "error", err)
	}
}

func persistAssistant(ctx context.Context, deps SubmitTurnDeps, chatID string, msgs []*types.Message, usage types.Usage) error {
	dbc := dbctx.Context{Ctx: ctx}
	if len(msgs) > 0 {
		if _, err := deps.Messages.Create(dbc, chatID, msgs); err != nil {
			return fmt.Errorf("persist assistant messages: %w", err)
		}
	}
	b, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("marshal usage: %w", err)
	}
	if err := deps.Chats.UpdateLastContext(dbc, chatID, datatypes.JSON(b)); err != nil {
		return fmt.Errorf("update last context: %w", err)
	}
	return nil
}
