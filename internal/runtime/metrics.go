package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/actionflow/internal/runtime/results"
)

// ActionMetrics holds the Prometheus collectors for action executions.
type ActionMetrics struct {
	mu sync.Mutex

	executionsTotal *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	resultMetrics   *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

func newActionCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actionflow",
			Subsystem: "action",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newActionHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "actionflow",
			Subsystem: "action",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewActionMetrics creates the collectors. A nil registerer selects the
// Prometheus default registerer.
func NewActionMetrics(registerer prometheus.Registerer) *ActionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &ActionMetrics{
		registerer:      registerer,
		executionsTotal: newActionCounterVec("executions_total", "Action executions by result type", []string{"action", "type"}),
		durationSeconds: newActionHistogramVec("duration_seconds", "Action execution time", prometheus.DefBuckets, []string{"action"}),
		resultMetrics:   newActionCounterVec("result_metrics_total", "Sum of metrics reported on action results", []string{"action", "name"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *ActionMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}
	var err error
	if m.executionsTotal, err = registerOrReuse(m.registerer, m.executionsTotal); err != nil {
		return err
	}
	if m.durationSeconds, err = registerOrReuse(m.registerer, m.durationSeconds); err != nil {
		return err
	}
	if m.resultMetrics, err = registerOrReuse(m.registerer, m.resultMetrics); err != nil {
		return err
	}
	m.registered = true
	return nil
}

// registerOrReuse registers c, or returns the collector already registered
// under the same descriptor.
func registerOrReuse[T prometheus.Collector](r prometheus.Registerer, c T) (T, error) {
	err := r.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

// RecordExecution counts one execution of action that produced r.
func (m *ActionMetrics) RecordExecution(action string, r results.Result, d time.Duration) {
	resultType := "none"
	if r != nil {
		resultType = string(r.Type())
		for _, metric := range r.Metrics() {
			if metric.Value > 0 {
				m.resultMetrics.WithLabelValues(action, metric.Name).Add(float64(metric.Value))
			}
		}
	}
	m.executionsTotal.WithLabelValues(action, resultType).Inc()
	m.durationSeconds.WithLabelValues(action).Observe(d.Seconds())
}

// Reset clears all series.
func (m *ActionMetrics) Reset() {
	m.executionsTotal.Reset()
	m.durationSeconds.Reset()
	m.resultMetrics.Reset()
}
