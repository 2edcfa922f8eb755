package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type collector interface {
	WritePrometheus(w io.Writer) error
}

func writeHeader(w io.Writer, name, help, kind string) error {
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", name, help); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) { c.Add(1, values...) }

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if err := writeHeader(w, c.name, c.help, "counter"); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range sortedKeys(c.values) {
		if _, err := fmt.Fprintf(w, "%s%s %g\n", c.name, k, c.values[k]); err != nil {
			return err
		}
	}
	return nil
}

type Counter struct {
	name string
	help string
	mu   sync.Mutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val++
	c.mu.Unlock()
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if err := writeHeader(w, c.name, c.help, "counter"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(w, "%s %g\n", c.name, c.val)
	return err
}

type Gauge struct {
	name string
	help string
	mu   sync.Mutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) add(d float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val += d
	g.mu.Unlock()
}

func (g *Gauge) Inc() { g.add(1) }
func (g *Gauge) Dec() { g.add(-1) }

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if err := writeHeader(w, g.name, g.help, "gauge"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := fmt.Fprintf(w, "%s %g\n", g.name, g.val)
	return err
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.Mutex
	values     map[string]*histogram
}

// histogram keeps cumulative bucket counts; the last slot is +Inf.
type histogram struct {
	counts []uint64
	sum    float64
	total  uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{counts: make([]uint64, len(h.buckets)+1)}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range h.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(h.buckets)]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if err := writeHeader(w, h.name, h.help, "histogram"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, k := range sortedKeys(h.values) {
		v := h.values[k]
		for i, b := range h.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(h.buckets)]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %g\n%s_count%s %d\n", h.name, k, v.sum, h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		fmt.Fprintf(&b, "%s=%q", name, val)
	}
	b.WriteByte('}')
	return b.String()
}

func withLe(labels string, le string) string {
	if labels == "" {
		return fmt.Sprintf("{le=%q}", le)
	}
	return strings.TrimSuffix(labels, "}") + fmt.Sprintf(",le=%q}", le)
}
