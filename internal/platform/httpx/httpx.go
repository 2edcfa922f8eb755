package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by upstream errors that carry a response status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError reports whether a request may be retried. Caller cancellation is
// never retryable; an upstream deadline is.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// RetryAfterDuration honours a numeric Retry-After header, capped at max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

// Backoff returns the exponential delay for a zero-based attempt.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base << attempt
	if d <= 0 || (max > 0 && d > max) {
		d = max
	}
	return d
}

// JitterSleep spreads base by ±20%.
func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	if low < 0 {
		low = 0
	}
	high := base.Seconds() + delta
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
