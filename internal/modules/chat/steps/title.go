package steps

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	types "github.com/yungbote/galaxychat-backend/internal/domain"
	"github.com/yungbote/galaxychat-backend/internal/llm"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	DefaultTitle      = "New Chat"
	DefaultTitleModel = "meituan/longcat-flash-chat"
	MaxTitleRunes     = 80
)

const titleSystemPrompt = `
- you will generate a short title based on the first message a user begins a conversation with
- ensure it is not more than 80 characters long
- the title should be a summary of the user's message
- do not use single quotes double quotes or colons`

type TitleDeps struct {
	Log       *logger.Logger
	Completer llm.Completer
	Model     string
	Timeout   time.Duration
}

// GenerateTitle asks the title model for a summary of msg. Any failure falls back to
// the message's own text, so a title is always produced.
func GenerateTitle(ctx context.Context, deps TitleDeps, msg *types.Message) string {
	fallback := ""
	if msg != nil {
		fallback = msg.Parts.FirstText()
	}
	if deps.Completer == nil || msg == nil {
		return FormatTitle(fallback)
	}

	model := strings.TrimSpace(deps.Model)
	if model == "" {
		model = DefaultTitleModel
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt, err := json.Marshal(struct {
		ID    string      `json:"id"`
		Role  types.Role  `json:"role"`
		Parts types.Parts `json:"parts"`
	}{msg.ID, msg.Role, msg.Parts})
	if err != nil {
		return FormatTitle(fallback)
	}

	title, err := deps.Completer.Complete(tctx, model, titleSystemPrompt, string(prompt))
	if err != nil {
		if deps.Log != nil {
			deps.Log.Warn("title generation failed; using message text", "model", model, "error", err)
		}
		return FormatTitle(fallback)
	}
	if strings.TrimSpace(title) == "" {
		return FormatTitle(fallback)
	}
	return FormatTitle(title)
}

// FormatTitle strips quotes and colons, collapses whitespace and caps the result at
// MaxTitleRunes. An empty result becomes DefaultTitle.
func FormatTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', ':', '“', '”', '‘', '’':
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > MaxTitleRunes {
		s = strings.TrimSpace(string([]rune(s)[:MaxTitleRunes]))
	}
	if s == "" {
		return DefaultTitle
	}
	return s
}
