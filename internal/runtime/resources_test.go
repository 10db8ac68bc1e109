package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResourceTrackerSnapshot(t *testing.T) {
	tracker := newResourceTracker()

	first := tracker.Snapshot()
	assert.Zero(t, first.CPUPercent, "no baseline yet")
	assert.NotZero(t, first.MemoryBytes)
	assert.Positive(t, first.Goroutines)

	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, tracker.Snapshot().CPUPercent, 0.0)
}

func TestResourceTrackerIgnoresZeroWallClock(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := newResourceTracker()
	tracker.now = func() time.Time { return frozen }

	tracker.Snapshot()
	assert.Zero(t, tracker.Snapshot().CPUPercent)
}

func TestResourceTrackerZeroValues(t *testing.T) {
	var missing *resourceTracker
	assert.Equal(t, ResourceUsage{}, missing.Snapshot())

	bare := &resourceTracker{}
	usage := bare.Snapshot()
	assert.NotZero(t, usage.MemoryBytes, "samples are created on demand")
	assert.Positive(t, usage.Goroutines)
}

func TestActionStatsReportResourceUsage(t *testing.T) {
	stats := newActionStats("org.example.A", newResourceTracker())
	stats.onExecutionStart()
	stats.onExecutionFinish(time.Millisecond, nil, nil, defaultErrorClassifier)

	assert.Positive(t, stats.Resource.Goroutines)
	assert.NotZero(t, stats.Resource.MemoryBytes)
}
