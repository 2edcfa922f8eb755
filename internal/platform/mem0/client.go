package mem0

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yungbote/galaxychat-backend/internal/memory"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const DefaultBaseURL = "https://api.mem0.ai"

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// TopK bounds the memories returned by Search.
	TopK int
}

// Client talks to the mem0 platform REST API.
type Client struct {
	log  *logger.Logger
	http *resty.Client
	topK int
}

var _ memory.Store = (*Client)(nil)

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	TopK   int    `json:"top_k,omitempty"`
}

type searchResult struct {
	ID     string  `json:"id"`
	Memory string  `json:"memory"`
	Score  float64 `json:"score,omitempty"`
}

type addRequest struct {
	Messages []memory.Entry `json:"messages"`
	UserID   string         `json:"user_id"`
}

type apiError struct {
	Detail any `json:"detail,omitempty"`
	Error  any `json:"error,omitempty"`
}

// New returns nil with a warning when no API key is configured; callers fall back to
// memory.Noop.
func New(log *logger.Logger, cfg Config) *Client {
	log = log.With("service", "Mem0Client")
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("MEM0_API_KEY not set, memory disabled")
		return nil
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Authorization", "Token "+strings.TrimSpace(cfg.APIKey)).
		SetHeader("Content-Type", "application/json")
	return &Client{log: log, http: rc, topK: topK}
}

// Resty exposes the underlying client for transport overrides in tests.
func (c *Client) Resty() *resty.Client { return c.http }

func (c *Client) Search(ctx context.Context, userID, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil
	}
	var out []searchResult
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(searchRequest{Query: query, UserID: userID, TopK: c.topK}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/memories/search/")
	if err != nil {
		return "", fmt.Errorf("mem0 search: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("mem0 search: status=%d body=%s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	lines := make([]string, 0, len(out))
	for _, r := range out {
		if m := strings.TrimSpace(r.Memory); m != "" {
			lines = append(lines, m)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Client) Add(ctx context.Context, userID string, entries []memory.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(addRequest{Messages: entries, UserID: userID}).
		SetError(&apiErr).
		Post("/v1/memories/")
	if err != nil {
		return fmt.Errorf("mem0 add: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mem0 add: status=%d body=%s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
