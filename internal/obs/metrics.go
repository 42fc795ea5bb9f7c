package obs

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is a thin adapter over OpenTelemetry instruments, caching each
// counter/histogram by name the way internal/rag/obs.OtelMetrics does.
// A nil *Metrics is safe to call (no-op), so components can be
// constructed without metrics wired in tests.
type Metrics struct {
	meter      metric.Meter
	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewMetrics constructs a Metrics instance using the global otel Meter
// provider under the given instrumentation name.
func NewMetrics(instrumentationName string) *Metrics {
	return &Metrics{
		meter:      otel.Meter(instrumentationName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (m *Metrics) incCounter(name string, labels map[string]string) {
	if m == nil {
		return
	}
	c, ok := m.getCounter(name)
	if !ok {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(toAttrs(labels)...))
}

func (m *Metrics) observeHistogram(name string, value float64, labels map[string]string) {
	if m == nil {
		return
	}
	h, ok := m.getHistogram(name)
	if !ok {
		return
	}
	h.Record(context.Background(), value, metric.WithAttributes(toAttrs(labels)...))
}

// IncArticles increments indexing_articles_total{result=ok|error}.
func (m *Metrics) IncArticles(result string) {
	m.incCounter("indexing_articles_total", map[string]string{"result": result})
}

// ObserveStageMS records indexing_stage_ms{stage=...} in milliseconds.
func (m *Metrics) ObserveStageMS(stage string, d time.Duration) {
	m.observeHistogram("indexing_stage_ms", float64(d.Milliseconds()), map[string]string{"stage": stage})
}

// ObserveQueryMS records search_query_ms, the end-to-end query latency.
func (m *Metrics) ObserveQueryMS(d time.Duration) {
	m.observeHistogram("search_query_ms", float64(d.Milliseconds()), nil)
}

// IncQueries increments search_queries_total{result=ok|error}.
func (m *Metrics) IncQueries(result string) {
	m.incCounter("search_queries_total", map[string]string{"result": result})
}

func (m *Metrics) getCounter(name string) (metric.Int64Counter, bool) {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[name]; ok {
		return c, true
	}
	ctr, err := m.meter.Int64Counter(name)
	if err != nil {
		return ctr, false
	}
	m.counters[name] = ctr
	return ctr, true
}

func (m *Metrics) getHistogram(name string) (metric.Float64Histogram, bool) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if ok {
		return h, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.histograms[name]; ok {
		return h, true
	}
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return hist, false
	}
	m.histograms[name] = hist
	return hist, true
}

func toAttrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}
