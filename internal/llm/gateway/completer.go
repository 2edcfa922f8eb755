package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/galaxychat-backend/internal/llm"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

// Completer runs one-shot chat completions against the gateway with go-openai.
type Completer struct {
	log    *logger.Logger
	client *openai.Client
}

var _ llm.Completer = (*Completer)(nil)

func NewCompleter(log *logger.Logger, cfg Config, httpClient *http.Client) *Completer {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	oc := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	oc.BaseURL = baseURL
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	return &Completer{
		log:    log.With("service", "GatewayCompleter"),
		client: openai.NewClientWithConfig(oc),
	}
}

func (c *Completer) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: 64,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
