package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	types "github.com/yungbote/galaxychat-backend/internal/domain"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Second)
	m.ObserveTurn("m", "ok", time.Second, types.Usage{InputTokens: 1})
	m.IncMemoryDegraded("search")
	m.IncRateLimited()
	m.APIInflightInc()
	m.APIInflightDec()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	if NewMetrics(false) != nil {
		t.Fatalf("disabled metrics should be nil")
	}
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(true)
	m.ObserveAPI("post", "/api/chat", "200", 300*time.Millisecond)
	m.ObserveTurn("meta/llama-3.2-1b", "ok", 2*time.Second, types.Usage{
		InputTokens:  10,
		OutputTokens: 5,
		CostUSD:      &types.Cost{TotalUSD: 0.25},
	})
	m.IncMemoryDegraded("search")

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`gc_api_requests_total{method="POST",route="/api/chat",status="200"} 1`,
		`gc_api_request_duration_seconds_bucket{method="POST",route="/api/chat",status="200",le="0.5"} 1`,
		`gc_api_request_duration_seconds_bucket{method="POST",route="/api/chat",status="200",le="0.25"} 0`,
		`gc_chat_turns_total{model="meta/llama-3.2-1b",outcome="ok"} 1`,
		`gc_chat_tokens_total{model="meta/llama-3.2-1b",kind="input"} 10`,
		`gc_chat_cost_usd_total{model="meta/llama-3.2-1b"} 0.25`,
		`gc_memory_degraded_total{op="search"} 1`,
		"# TYPE gc_chat_turn_duration_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization=Bearer x , bad, =v, k= ,x-team=chat")
	if len(got) != 2 || got["authorization"] != "Bearer x" || got["x-team"] != "chat" {
		t.Fatalf("headers=%v", got)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
