package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
	"github.com/yungbote/galaxychat-backend/internal/llm"
	"github.com/yungbote/galaxychat-backend/internal/platform/httpx"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://ai-gateway.vercel.sh/v1"

	defaultChatCompletionsPath = "/chat/completions"
	maxRetryDelay              = 10 * time.Second
)

type Config struct {
	BaseURL             string
	APIKey              string
	ChatCompletionsPath string
	// Timeout bounds connection setup and response headers, not the stream body.
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
}

// Client speaks the OpenAI-compatible chat completions protocol of the AI gateway.
type Client struct {
	log                 *logger.Logger
	baseURL             string
	apiKey              string
	chatCompletionsPath string
	maxRetries          int
	retryBase           time.Duration
	httpClient          *http.Client
}

var _ llm.Model = (*Client)(nil)

func New(log *logger.Logger, cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	chatPath := strings.TrimSpace(cfg.ChatCompletionsPath)
	if chatPath == "" {
		chatPath = defaultChatCompletionsPath
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = 500 * time.Millisecond
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &Client{
		log:                 log.With("service", "GatewayClient"),
		baseURL:             baseURL,
		apiKey:              strings.TrimSpace(cfg.APIKey),
		chatCompletionsPath: chatPath,
		maxRetries:          maxRetries,
		retryBase:           retryBase,
		httpClient:          &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(log *logger.Logger, cfg Config, httpClient *http.Client) (*Client, error) {
	c, err := New(log, cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

// HTTPClient exposes the underlying client so one-shot completions share its transport.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// ---------------- Wire types ----------------

type chatCompletionRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is a plain string or a list of contentPart.
	Content any `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type annotation struct {
	Type        string `json:"type"`
	URLCitation *struct {
		URL   string `json:"url"`
		Title string `json:"title,omitempty"`
	} `json:"url_citation,omitempty"`
}

type chatCompletionUsage struct {
	PromptTokens        int64 `json:"prompt_tokens"`
	CompletionTokens    int64 `json:"completion_tokens"`
	TotalTokens         int64 `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int64 `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *struct {
		ReasoningTokens int64 `json:"reasoning_tokens"`
	} `json:"completion_tokens_details,omitempty"`
}

type chatCompletionStreamChunk struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Delta struct {
			Content          string       `json:"content,omitempty"`
			Reasoning        string       `json:"reasoning,omitempty"`
			ReasoningContent string       `json:"reasoning_content,omitempty"`
			Annotations      []annotation `json:"annotations,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Citations []string             `json:"citations,omitempty"`
	Usage     *chatCompletionUsage `json:"usage,omitempty"`
	Error     any                  `json:"error,omitempty"`
}

func toChatMessages(system string, messages []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, chatMessage{Role: string(chat.RoleSystem), Content: system})
	}
	for _, m := range messages {
		if len(m.Content) == 0 {
			continue
		}
		textOnly := true
		for _, ct := range m.Content {
			if ct.Type != llm.ContentText {
				textOnly = false
				break
			}
		}
		if textOnly {
			out = append(out, chatMessage{Role: string(m.Role), Content: m.Text()})
			continue
		}
		parts := make([]contentPart, 0, len(m.Content))
		for _, ct := range m.Content {
			switch ct.Type {
			case llm.ContentImage:
				parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: ct.ImageURL}})
			default:
				parts = append(parts, contentPart{Type: "text", Text: ct.Text})
			}
		}
		out = append(out, chatMessage{Role: string(m.Role), Content: parts})
	}
	return out
}

// ---------------- Streaming ----------------

// Stream posts a streaming chat completion and re-emits it as UI stream events.
// Retries apply only until the upstream accepts the request; once the body starts
// streaming, failures are returned as-is.
func (c *Client) Stream(ctx context.Context, req llm.Request, emit llm.Emit) (chat.Usage, error) {
	msgs := toChatMessages(req.System, req.Messages)
	if len(msgs) == 0 {
		return chat.Usage{}, errors.New("no messages")
	}
	body := chatCompletionRequest{
		Model:         req.Model,
		Messages:      msgs,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}

	resp, err := c.open(ctx, body)
	if err != nil {
		return chat.Usage{}, err
	}
	defer resp.Body.Close()

	st := newStepState(emit)
	var usage chat.Usage
	err = streamSSE(resp.Body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}

		var chunk chatCompletionStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.log.Debug("Skipping undecodable stream chunk", "error", err)
			return nil
		}
		if chunk.Error != nil {
			b, _ := json.Marshal(chunk.Error)
			return &StreamError{Raw: string(b)}
		}
		if err := st.begin(); err != nil {
			return err
		}
		for _, ch := range chunk.Choices {
			reasoning := ch.Delta.Reasoning
			if reasoning == "" {
				reasoning = ch.Delta.ReasoningContent
			}
			if reasoning != "" {
				if err := st.reasoning(reasoning); err != nil {
					return err
				}
			}
			if ch.Delta.Content != "" {
				if err := st.text(ch.Delta.Content); err != nil {
					return err
				}
			}
			for _, a := range ch.Delta.Annotations {
				if a.Type != "url_citation" || a.URLCitation == nil {
					continue
				}
				if err := st.source(a.URLCitation.URL, a.URLCitation.Title); err != nil {
					return err
				}
			}
		}
		for _, u := range chunk.Citations {
			if err := st.source(u, ""); err != nil {
				return err
			}
		}
		if chunk.Usage != nil {
			usage = toUsage(*chunk.Usage)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return usage, ctxErr
		}
		return usage, err
	}
	if err := st.finish(); err != nil {
		return usage, err
	}
	return usage.Normalized(), nil
}

func (c *Client) open(ctx context.Context, body chatCompletionRequest) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.chatCompletionsPath, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, "application/json", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if err == nil {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			err = &HTTPError{StatusCode: resp.StatusCode, Body: string(b)}
		}

		if !httpx.IsRetryableError(err) || attempt >= c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, httpx.Backoff(attempt, c.retryBase, maxRetryDelay), maxRetryDelay)
		sleepFor = httpx.JitterSleep(sleepFor)
		c.log.Warn("Gateway request retrying",
			"model", body.Model,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return nil, err
		}
	}
}

func (c *Client) setHeaders(req *http.Request, contentType string, accept string) {
	if strings.TrimSpace(contentType) != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.TrimSpace(accept) != "" {
		req.Header.Set("Accept", accept)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func toUsage(u chatCompletionUsage) chat.Usage {
	out := chat.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		out.CachedInputTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		out.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	return out.Normalized()
}

var _ httpx.HTTPStatusCoder = (*HTTPError)(nil)
