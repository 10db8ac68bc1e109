package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	"github.com/drblury/actionflow/internal/runtime/results"
)

func TestActionStatsCollectsExtendedMetrics(t *testing.T) {
	stats := newActionStats("org.example.Transform", newResourceTracker())
	instrumented := wrapHandlerWithStats(func(context.Context, Invocation) (results.Result, error) {
		time.Sleep(5 * time.Millisecond)
		return results.NewError("cause", "ctx"), &events.MissingDomainError{Name: "xml"}
	}, stats, nil)

	if _, err := instrumented(context.Background(), hookInvocation()); err == nil {
		t.Fatalf("expected error from instrumented handler")
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	if stats.Executions != 1 {
		t.Fatalf("expected 1 execution, got %d", stats.Executions)
	}
	if stats.Failures != 1 {
		t.Fatalf("expected failure count to increment")
	}
	if stats.InFlight != 0 {
		t.Fatalf("expected no executions in flight, got %d", stats.InFlight)
	}
	if stats.Results[results.TypeError] != 1 {
		t.Fatalf("expected error result to be counted, got %+v", stats.Results)
	}
	if stats.Errors.Lookup != 1 {
		t.Fatalf("expected lookup bucket to increment, got %+v", stats.Errors)
	}
	if stats.Errors.LastError == "" {
		t.Fatalf("expected last error to be recorded")
	}
	if stats.Throughput.TotalExecutions != 1 {
		t.Fatalf("expected throughput total to track executions")
	}
	if stats.Latency.SampleSize == 0 || stats.Latency.LastNs < int64(5*time.Millisecond) {
		t.Fatalf("expected latency metrics to have samples, got %+v", stats.Latency)
	}
	if stats.Resource.Goroutines == 0 {
		t.Fatalf("expected resource usage to be sampled")
	}
}

func TestDefaultErrorClassifier(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{nil, ErrorCategoryNone},
		{&events.ExpectedContentError{Index: 1}, ErrorCategoryLookup},
		{&events.MissingEnrichmentError{Name: "e"}, ErrorCategoryLookup},
		{fmt.Errorf("wrapped: %w", &events.MissingSourceMetadataError{Key: "k"}), ErrorCategoryLookup},
		{&events.ParameterError{Err: errors.New("bad")}, ErrorCategoryParameters},
		{&ConfigurationError{Action: "a", Err: errspkg.ErrIncompatibleResult}, ErrorCategoryConfiguration},
		{errspkg.ErrNilResult, ErrorCategoryConfiguration},
		{context.Canceled, ErrorCategoryCanceled},
		{errors.New("other"), ErrorCategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultErrorClassifier(tt.err), "%v", tt.err)
	}
}

func TestErrorBreakdownRecord(t *testing.T) {
	var b ErrorBreakdown
	b.Record(ErrorCategoryNone, nil)
	assert.Equal(t, ErrorBreakdown{}, b)

	b.Record(ErrorCategoryNone, errors.New("unclassified"))
	b.Record(ErrorCategoryParameters, errors.New("params"))
	b.Record(ErrorCategoryCanceled, context.Canceled)
	b.Record(ErrorCategory("custom"), errors.New("custom"))

	assert.EqualValues(t, 2, b.Other)
	assert.EqualValues(t, 1, b.Parameters)
	assert.EqualValues(t, 1, b.Canceled)
	assert.Equal(t, "custom", b.LastError)
}

func TestActionStatsUsesCustomClassifier(t *testing.T) {
	stats := newActionStats("a", nil)
	classifier := func(err error) ErrorCategory {
		if err != nil {
			return ErrorCategoryConfiguration
		}
		return ErrorCategoryNone
	}
	stats.onExecutionStart()
	stats.onExecutionFinish(time.Millisecond, results.NewError("c", "x"), errors.New("any"), classifier)
	assert.EqualValues(t, 1, stats.Errors.Configuration)
	assert.Equal(t, ResourceUsage{}, stats.Resource)
}

func TestPercentile(t *testing.T) {
	samples := []int64{10, 20, 30, 40, 50}
	assert.EqualValues(t, 0, percentile(nil, 0.5))
	assert.EqualValues(t, 10, percentile(samples, 0))
	assert.EqualValues(t, 30, percentile(samples, 0.5))
	assert.EqualValues(t, 50, percentile(samples, 1))
	assert.EqualValues(t, 48, percentile(samples, 0.95))
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	lw := newLatencyWindow(3)
	for _, d := range []time.Duration{1, 2, 3, 100} {
		lw.Add(d)
	}
	snap := lw.Snapshot()
	assert.Equal(t, 3, snap.SampleSize)
	assert.EqualValues(t, 100, snap.LastNs)
	assert.EqualValues(t, 3, snap.P50Ns)
	assert.EqualValues(t, 35, snap.AverageNs)
}

func TestThroughputWindowDropsOldSamples(t *testing.T) {
	tw := newThroughputWindow(time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tw.AddAndSnapshot(start)
	tw.AddAndSnapshot(start.Add(30 * time.Second))
	snap := tw.AddAndSnapshot(start.Add(90 * time.Second))

	assert.Equal(t, 2, snap.Count)
	assert.InDelta(t, 60.0, snap.WindowSeconds, 0.001)
	assert.InDelta(t, 2.0/60.0, snap.CurrentRPS, 0.0001)
}

func TestActionStatsMarshalJSON(t *testing.T) {
	stats := newActionStats("a", nil)
	stats.onExecutionStart()
	stats.onExecutionFinish(time.Millisecond, results.NewFilter("f"), nil, nil)

	raw, err := jsoncodec.Marshal(stats)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, jsoncodec.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 1, decoded["executions"])
	assert.Equal(t, map[string]any{"filter": float64(1)}, decoded["results"])
	assert.NotContains(t, decoded, "actionName")
}
