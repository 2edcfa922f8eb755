package observability

import (
	"io"
	"net/http"
	"strings"
	"time"

	types "github.com/yungbote/galaxychat-backend/internal/domain"
)

// Metrics is a small Prometheus text-format registry. A nil *Metrics is valid and
// records nothing, so callers never branch on whether metrics are enabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	turns        *CounterVec
	turnLatency  *HistogramVec
	turnTokens   *CounterVec
	turnCostUSD  *CounterVec
	memoryDegrad *CounterVec
	rateLimited  *Counter
}

func NewMetrics(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	return &Metrics{
		apiRequests: NewCounterVec("gc_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"gc_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("gc_api_inflight_requests", "In-flight API requests."),

		turns: NewCounterVec("gc_chat_turns_total", "Chat turns by model/outcome.", []string{"model", "outcome"}),
		turnLatency: NewHistogramVec(
			"gc_chat_turn_duration_seconds",
			"Model streaming time per chat turn by model/outcome.",
			[]string{"model", "outcome"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		),
		turnTokens:   NewCounterVec("gc_chat_tokens_total", "Tokens consumed by model/kind.", []string{"model", "kind"}),
		turnCostUSD:  NewCounterVec("gc_chat_cost_usd_total", "Estimated model cost in USD by model.", []string{"model"}),
		memoryDegrad: NewCounterVec("gc_memory_degraded_total", "Memory operations that failed and were skipped.", []string{"op"}),
		rateLimited:  NewCounter("gc_chat_rate_limited_total", "Chat submissions rejected by the per-user rate limit."),
	}
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_ = m.WritePrometheus(w)
	})
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.turns, m.turnLatency, m.turnTokens, m.turnCostUSD,
		m.memoryDegrad, m.rateLimited,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orUnknown(strings.ToUpper(method))
	route = orUnknown(route)
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveTurn records one finished, failed or cancelled chat turn.
func (m *Metrics) ObserveTurn(model, outcome string, dur time.Duration, usage types.Usage) {
	if m == nil {
		return
	}
	model = orUnknown(strings.TrimSpace(model))
	outcome = orUnknown(strings.TrimSpace(outcome))
	m.turns.Inc(model, outcome)
	if dur > 0 {
		m.turnLatency.Observe(dur.Seconds(), model, outcome)
	}
	if usage.InputTokens > 0 {
		m.turnTokens.Add(float64(usage.InputTokens), model, "input")
	}
	if usage.OutputTokens > 0 {
		m.turnTokens.Add(float64(usage.OutputTokens), model, "output")
	}
	if usage.ReasoningTokens > 0 {
		m.turnTokens.Add(float64(usage.ReasoningTokens), model, "reasoning")
	}
	if usage.CostUSD != nil && usage.CostUSD.TotalUSD > 0 {
		m.turnCostUSD.Add(usage.CostUSD.TotalUSD, model)
	}
}

func (m *Metrics) IncMemoryDegraded(op string) {
	if m == nil {
		return
	}
	m.memoryDegrad.Inc(orUnknown(op))
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
