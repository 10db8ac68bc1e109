package runtime

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	errspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	"github.com/drblury/actionflow/internal/runtime/results"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// ActionStats aggregates execution statistics for one action.
type ActionStats struct {
	mu sync.Mutex `json:"-"`

	actionName string `json:"-"`

	Executions          uint64    `json:"executions"`
	Failures            uint64    `json:"failures"`
	InFlight            uint64    `json:"in_flight"`
	TotalProcessingTime int64     `json:"total_processing_time_ns"`
	LastExecutedAt      time.Time `json:"last_executed_at"`

	Results    map[results.Type]uint64 `json:"results"`
	Latency    LatencyMetrics          `json:"latency"`
	Throughput ThroughputMetrics       `json:"throughput"`
	Errors     ErrorBreakdown          `json:"errors"`
	Resource   ResourceUsage           `json:"resource"`

	latencyWindow    *latencyWindow    `json:"-"`
	throughputWindow *throughputWindow `json:"-"`
	resourceSampler  *resourceTracker  `json:"-"`
}

// ActionInfo is the web UI view of a registered action.
type ActionInfo struct {
	Name  string       `json:"name"`
	Kind  Kind         `json:"kind"`
	Topic string       `json:"topic"`
	Stats *ActionStats `json:"stats"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ThroughputMetrics struct {
	CurrentRPS         float64 `json:"current_rps"`
	WindowSeconds      float64 `json:"window_seconds"`
	ExecutionsInWindow uint64  `json:"executions_in_window"`
	TotalExecutions    uint64  `json:"total_executions"`
}

// ErrorBreakdown counts failed executions by category.
type ErrorBreakdown struct {
	Lookup        uint64 `json:"lookup"`
	Parameters    uint64 `json:"parameters"`
	Configuration uint64 `json:"configuration"`
	Canceled      uint64 `json:"canceled"`
	Other         uint64 `json:"other"`
	LastError     string `json:"last_error,omitempty"`
}

type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	Goroutines  int     `json:"goroutines"`
}

type ErrorCategory string

const (
	ErrorCategoryNone          ErrorCategory = "none"
	ErrorCategoryLookup        ErrorCategory = "lookup"
	ErrorCategoryParameters    ErrorCategory = "parameters"
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryCanceled      ErrorCategory = "canceled"
	ErrorCategoryOther         ErrorCategory = "other"
)

// ErrorClassifier maps an execution error to a stats category.
type ErrorClassifier func(error) ErrorCategory

func newActionStats(name string, sampler *resourceTracker) *ActionStats {
	return &ActionStats{
		actionName:       name,
		resourceSampler:  sampler,
		Results:          make(map[results.Type]uint64),
		latencyWindow:    newLatencyWindow(latencySampleSize),
		throughputWindow: newThroughputWindow(throughputWindowSize),
	}
}

func (s *ActionStats) onExecutionStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InFlight++
}

func (s *ActionStats) onExecutionFinish(duration time.Duration, r results.Result, err error, classifier ErrorClassifier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InFlight > 0 {
		s.InFlight--
	}
	s.Executions++
	if err != nil {
		s.Failures++
	}
	if r != nil {
		s.Results[r.Type()]++
	}
	s.TotalProcessingTime += int64(duration)
	s.LastExecutedAt = time.Now().UTC()

	if s.latencyWindow != nil {
		s.latencyWindow.Add(duration)
		snapshot := s.latencyWindow.Snapshot()
		snapshot.AverageNs = s.TotalProcessingTime / int64(s.Executions)
		s.Latency = snapshot
	}

	if s.throughputWindow != nil {
		snapshot := s.throughputWindow.AddAndSnapshot(time.Now())
		s.Throughput.CurrentRPS = snapshot.CurrentRPS
		s.Throughput.WindowSeconds = snapshot.WindowSeconds
		s.Throughput.ExecutionsInWindow = uint64(snapshot.Count)
	}
	s.Throughput.TotalExecutions = s.Executions

	if classifier == nil {
		classifier = defaultErrorClassifier
	}
	s.Errors.Record(classifier(err), err)

	if s.resourceSampler != nil {
		s.Resource = s.resourceSampler.Snapshot()
	}
}

func (s *ActionStats) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type Alias ActionStats
	return jsoncodec.Marshal((*Alias)(s))
}

func (e *ErrorBreakdown) Record(category ErrorCategory, err error) {
	switch category {
	case ErrorCategoryNone:
		if err == nil {
			return
		}
		e.Other++
	case ErrorCategoryLookup:
		e.Lookup++
	case ErrorCategoryParameters:
		e.Parameters++
	case ErrorCategoryConfiguration:
		e.Configuration++
	case ErrorCategoryCanceled:
		e.Canceled++
	default:
		e.Other++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var m LatencyMetrics
	if lw == nil {
		return m
	}
	m.LastNs = lw.last
	if lw.filled == 0 {
		return m
	}
	samples := make([]int64, lw.filled)
	for i := range lw.filled {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var sum int64
	for _, v := range samples {
		sum += v
	}
	m.SampleSize = lw.filled
	m.P50Ns = percentile(samples, 0.50)
	m.P95Ns = percentile(samples, 0.95)
	m.P99Ns = percentile(samples, 0.99)
	m.AverageNs = sum / int64(len(samples))
	return m
}

// percentile interpolates linearly between the two nearest ranks of sorted.
func percentile(sorted []int64, quantile float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	if quantile <= 0 {
		return sorted[0]
	}
	if quantile >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := quantile * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + int64(float64(sorted[upper]-sorted[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{horizon: horizon, samples: make([]time.Time, 0, 64)}
}

func (tw *throughputWindow) AddAndSnapshot(now time.Time) throughputSnapshot {
	if tw == nil {
		return throughputSnapshot{}
	}
	tw.samples = append(tw.samples, now)

	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		tw.samples = append(tw.samples[:0], tw.samples[idx:]...)
	}

	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	return throughputSnapshot{
		Count:         len(tw.samples),
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(len(tw.samples)) / span.Seconds(),
	}
}

func defaultErrorClassifier(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	var (
		contentErr  *events.ExpectedContentError
		domainErr   *events.MissingDomainError
		enrichErr   *events.MissingEnrichmentError
		metadataErr *events.MissingMetadataError
		sourceErr   *events.MissingSourceMetadataError
		paramErr    *events.ParameterError
		configErr   *ConfigurationError
	)
	switch {
	case errors.As(err, &contentErr), errors.As(err, &domainErr), errors.As(err, &enrichErr),
		errors.As(err, &metadataErr), errors.As(err, &sourceErr):
		return ErrorCategoryLookup
	case errors.As(err, &paramErr):
		return ErrorCategoryParameters
	case errors.As(err, &configErr), errors.Is(err, errspkg.ErrNilResult), errors.Is(err, errspkg.ErrEmptyContent):
		return ErrorCategoryConfiguration
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryCanceled
	}
	return ErrorCategoryOther
}
