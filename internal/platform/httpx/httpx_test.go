package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), true},
		{"429", statusErr(429), true},
		{"503", statusErr(503), true},
		{"400", statusErr(400), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryAfterDurationCaps(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"90"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("got %s", got)
	}
	if got := RetryAfterDuration(nil, time.Second, 0); got != time.Second {
		t.Fatalf("got %s", got)
	}
}

func TestBackoffDoublesUntilMax(t *testing.T) {
	if got := Backoff(0, 100*time.Millisecond, time.Second); got != 100*time.Millisecond {
		t.Fatalf("attempt 0: %s", got)
	}
	if got := Backoff(2, 100*time.Millisecond, time.Second); got != 400*time.Millisecond {
		t.Fatalf("attempt 2: %s", got)
	}
	if got := Backoff(10, 100*time.Millisecond, time.Second); got != time.Second {
		t.Fatalf("attempt 10: %s", got)
	}
}

func TestSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
