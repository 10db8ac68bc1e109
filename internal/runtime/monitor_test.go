package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/actionflow/internal/runtime/queue"
)

func newTestMonitor(q *testQueue, active *ActiveExecutions, now *time.Time) *monitor {
	return &monitor{
		queue:     q,
		active:    active,
		topics:    []string{"org.example.A", "org.example.B"},
		interval:  time.Hour,
		threshold: 5 * time.Second,
		logger:    newTestLogger(),
		now:       func() time.Time { return *now },
	}
}

func TestMonitorHeartbeatsEveryTopic(t *testing.T) {
	q := newTestQueue()
	now := time.Now()
	m := newTestMonitor(q, NewActiveExecutions(), &now)

	m.tick(context.Background())
	m.tick(context.Background())

	assert.Equal(t, []string{"org.example.A", "org.example.B", "org.example.A", "org.example.B"}, q.Heartbeats())
	assert.Empty(t, q.Recorded())
	assert.Empty(t, q.Removed())
}

func TestMonitorRecordsAndRemovesLongRunningTasks(t *testing.T) {
	q := newTestQueue()
	active := NewActiveExecutions()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	m := newTestMonitor(q, active, &now)

	exec := queue.ActionExecution{ClassName: "org.example.A", Action: "flow.a", Did: "did-1", StartTime: start}
	active.Add(exec)

	now = start.Add(time.Second)
	m.tick(context.Background())
	assert.Empty(t, q.Recorded(), "execution below the threshold must not be recorded")

	now = start.Add(6 * time.Second)
	m.tick(context.Background())
	require.Len(t, q.Recorded(), 1)
	assert.Equal(t, exec, q.Recorded()[0])

	now = start.Add(16 * time.Second)
	m.tick(context.Background())
	assert.Len(t, q.Recorded(), 2, "still running executions are recorded on every tick")
	assert.Empty(t, q.Removed())

	active.Remove(exec)
	m.tick(context.Background())
	require.Len(t, q.Removed(), 1)
	assert.Equal(t, exec, q.Removed()[0])

	m.tick(context.Background())
	assert.Len(t, q.Removed(), 1, "a finished execution is removed once")
}

func TestMonitorClearsRecordsOnStop(t *testing.T) {
	q := newTestQueue()
	active := NewActiveExecutions()
	start := time.Now().Add(-time.Minute)
	exec := queue.ActionExecution{ClassName: "org.example.A", Action: "flow.a", Did: "did-1", StartTime: start}
	active.Add(exec)

	now := time.Now()
	m := newTestMonitor(q, active, &now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return len(q.Recorded()) == 1 }, "first tick runs immediately")
	cancel()
	<-done

	require.Len(t, q.Removed(), 1)
	assert.Equal(t, exec, q.Removed()[0])
}
