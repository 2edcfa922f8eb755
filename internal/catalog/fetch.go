package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultURL = "https://models.dev/api.json"

// Fetcher downloads the raw catalog document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type HTTPFetcher struct {
	url  string
	http *resty.Client
}

func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFetcher{
		url:  url,
		http: resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := f.http.R().SetContext(ctx).Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch catalog: status=%d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }
