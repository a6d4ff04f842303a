package observability

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder receives one observation per completed operation
// ("run", "file.study", "file.assay", "file.investigation").
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// ByteCounter is implemented by recorders that also count drained bytes.
type ByteCounter interface {
	AddBytes(operation string, n int64)
}

// NopMetrics discards observations.
type NopMetrics struct{}

// Observe implements MetricsRecorder.
func (NopMetrics) Observe(context.Context, string, bool, time.Duration) {}

var expvarSeq uint64

// ExpvarMetricsRecorder publishes duration totals, result counters and byte
// totals per operation via expvar.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
	bytes     map[string]int64
}

// ExpvarMetricsSnapshot is a copy of the recorded values.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	Bytes       map[string]int64            `json:"bytes_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated name when name is empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("isatab_writer_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
		bytes:     make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the current values.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, counts := range r.results {
		cpy := make(map[string]int64, len(counts))
		for status, n := range counts {
			cpy[status] = n
		}
		results[op] = cpy
	}
	bytes := make(map[string]int64, len(r.bytes))
	for op, n := range r.bytes {
		bytes[op] = n
	}
	return ExpvarMetricsSnapshot{DurationsMS: durations, Results: results, Bytes: bytes, RecordedAt: time.Now().UTC()}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[operation] += float64(duration) / float64(time.Millisecond)
	if _, ok := r.results[operation]; !ok {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][status(success)]++
}

// AddBytes implements ByteCounter.
func (r *ExpvarMetricsRecorder) AddBytes(operation string, n int64) {
	r.mu.Lock()
	r.bytes[operation] += n
	r.mu.Unlock()
}

// PrometheusRecorder exports operation durations and drained bytes.
type PrometheusRecorder struct {
	durations *prometheus.HistogramVec
	bytes     *prometheus.CounterVec
}

// NewPrometheusRecorder registers the writer collectors on reg. A nil reg
// uses a private registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &PrometheusRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "isatab",
			Name:      "operation_duration_seconds",
			Help:      "Duration of writer runs and per-file work.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isatab",
			Name:      "drained_bytes_total",
			Help:      "Bytes copied from pipes to destinations.",
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{r.durations, r.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	r.durations.WithLabelValues(operation, status(success)).Observe(duration.Seconds())
}

// AddBytes implements ByteCounter.
func (r *PrometheusRecorder) AddBytes(operation string, n int64) {
	r.bytes.WithLabelValues(operation).Add(float64(n))
}

// Multi fans observations out to several recorders.
type Multi []MetricsRecorder

// Observe implements MetricsRecorder.
func (m Multi) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}

// AddBytes implements ByteCounter for the members that support it.
func (m Multi) AddBytes(operation string, n int64) {
	for _, r := range m {
		if bc, ok := r.(ByteCounter); ok {
			bc.AddBytes(operation, n)
		}
	}
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
