package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/galaxychat-backend/internal/domain"
	"github.com/yungbote/galaxychat-backend/internal/http/response"
	chatmod "github.com/yungbote/galaxychat-backend/internal/modules/chat"
	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
	"github.com/yungbote/galaxychat-backend/internal/stream"
)

// ChatUsecases is the part of the chat module the HTTP layer drives.
type ChatUsecases interface {
	SubmitTurn(ctx context.Context, in chatmod.SubmitTurnInput, w stream.Writer) error
	GetChat(ctx context.Context, userID, chatID string) (*chatmod.ChatDetail, error)
	UpdateChat(ctx context.Context, in chatmod.UpdateChatInput) (*types.Chat, error)
	DeleteChat(ctx context.Context, userID, chatID string) (*types.Chat, error)
	ListHistory(ctx context.Context, in chatmod.HistoryInput) (*chatmod.HistoryPage, error)
	DeleteTrailingMessages(ctx context.Context, userID, messageID string) (int64, error)
	ListMedia(ctx context.Context, userID string) ([]*types.Message, error)
}

type ChatHandler struct {
	log  *logger.Logger
	chat ChatUsecases
}

func NewChatHandler(log *logger.Logger, chat ChatUsecases) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chat: chat}
}

type submitTurnReq struct {
	ID         string           `json:"id"`
	Message    *types.Message   `json:"message"`
	Model      string           `json:"model"`
	WebSearch  bool             `json:"webSearch"`
	Visibility types.Visibility `json:"visibility"`
}

// POST /api/chat
// Streams the assistant reply as a UI message stream. Errors raised before the first
// event are plain JSON responses.
func (h *ChatHandler) SubmitTurn(c *gin.Context) {
	var req submitTurnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug("invalid chat request", "error", err)
		response.RespondMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	w := &lazySSE{c: c}
	err := h.chat.SubmitTurn(ctx, chatmod.SubmitTurnInput{
		UserID:     ctxutil.UserID(ctx),
		ChatID:     strings.TrimSpace(req.ID),
		Message:    req.Message,
		ModelID:    strings.TrimSpace(req.Model),
		WebSearch:  req.WebSearch,
		Visibility: req.Visibility,
	}, w)

	if w.sse == nil {
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("chat turn produced no events")
		}
		response.RespondError(c, h.log, err)
		return
	}
	if ctx.Err() != nil {
		// the client is gone; there is nobody to send [DONE] to
		return
	}
	if err := w.sse.Close(); err != nil {
		h.log.Debug("failed to close chat stream", "error", err)
	}
}

// lazySSE switches the response to an event stream on the first event, so failures
// before streaming can still be reported as JSON.
type lazySSE struct {
	c   *gin.Context
	sse *stream.SSEWriter
}

func (l *lazySSE) Write(e stream.Event) error {
	if l.sse == nil {
		stream.SetHeaders(l.c.Writer.Header())
		l.c.Status(http.StatusOK)
		l.sse = stream.NewSSEWriter(l.c.Writer)
	}
	return l.sse.Write(e)
}

// DELETE /api/chat?id=
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	ctx := c.Request.Context()
	deleted, err := h.chat.DeleteChat(ctx, ctxutil.UserID(ctx), strings.TrimSpace(c.Query("id")))
	if err != nil {
		response.RespondError(c, h.log, err)
		return
	}
	response.RespondOK(c, deleted)
}

// GET /api/chat/:id
func (h *ChatHandler) GetChat(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.chat.GetChat(ctx, ctxutil.UserID(ctx), c.Param("id"))
	if err != nil {
		response.RespondError(c, h.log, err)
		return
	}
	response.RespondOK(c, detail)
}

type updateChatReq struct {
	Title      *string           `json:"title"`
	Visibility *types.Visibility `json:"visibility"`
}

// PATCH /api/chat/:id
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	var req updateChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	ctx := c.Request.Context()
	updated, err := h.chat.UpdateChat(ctx, chatmod.UpdateChatInput{
		UserID:     ctxutil.UserID(ctx),
		ChatID:     c.Param("id"),
		Title:      req.Title,
		Visibility: req.Visibility,
	})
	if err != nil {
		response.RespondError(c, h.log, err)
		return
	}
	response.RespondOK(c, updated)
}

// GET /api/history?limit=&starting_after=&ending_before=
func (h *ChatHandler) ListHistory(c *gin.Context) {
	limit := 0
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	ctx := c.Request.Context()
	page, err := h.chat.ListHistory(ctx, chatmod.HistoryInput{
		UserID:        ctxutil.UserID(ctx),
		Limit:         limit,
		StartingAfter: strings.TrimSpace(c.Query("starting_after")),
		EndingBefore:  strings.TrimSpace(c.Query("ending_before")),
	})
	if err != nil {
		response.RespondError(c, h.log, err)
		return
	}
	response.RespondOK(c, page)
}

// DELETE /api/messages/:id/trailing
// Removes the message and everything after it, ahead of an edit or regenerate.
func (h *ChatHandler) DeleteTrailingMessages(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := h.chat.DeleteTrailingMessages(ctx, ctxutil.UserID(ctx), c.Param("id"))
	if err != nil {
		response.RespondError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": n})
}

// GET /api/library
func (h *ChatHandler) ListMedia(c *gin.Context) {
	ctx := c.Request.Context()
	msgs, err := h.chat.ListMedia(ctx, ctxutil.UserID(ctx))
	if err != nil {
		response.RespondError(c, h.log, err)
		return
	}
	if msgs == nil {
		msgs = []*types.Message{}
	}
	response.RespondOK(c, gin.H{"mediaMessages": msgs})
}
