package runtime

import (
	"context"
	"time"

	"github.com/drblury/actionflow/internal/runtime/logging"
	"github.com/drblury/actionflow/internal/runtime/queue"
)

// monitor reports liveness of every action topic and keeps the long-running
// task records in step with the active executions.
type monitor struct {
	queue     queue.Client
	active    *ActiveExecutions
	topics    []string
	interval  time.Duration
	threshold time.Duration
	logger    logging.ServiceLogger
	now       func() time.Time

	// reported holds the executions recorded as long running on the previous
	// tick, keyed by ActionExecution.Key.
	reported map[string]queue.ActionExecution
}

func (m *monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.clear(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *monitor) tick(ctx context.Context) {
	for _, topic := range m.topics {
		if err := m.queue.Heartbeat(ctx, topic); err != nil {
			m.logger.Error("Heartbeat failed", err, logging.LogFields{"topic": topic})
		}
	}

	now := m.now()
	current := make(map[string]queue.ActionExecution)
	for _, exec := range m.active.Snapshot() {
		if !exec.ExceedsThreshold(now, m.threshold) {
			continue
		}
		current[exec.Key()] = exec
		if err := m.queue.RecordLongRunningTask(ctx, exec); err != nil {
			m.logger.Error("Recording long-running task failed", err, logging.LogFields{"task": exec.Key()})
		}
	}

	for key, exec := range m.reported {
		if _, running := current[key]; running {
			continue
		}
		if err := m.queue.RemoveLongRunningTask(ctx, exec); err != nil {
			m.logger.Error("Removing long-running task failed", err, logging.LogFields{"task": key})
		}
	}
	m.reported = current
}

// clear removes every long-running record this monitor still owns.
func (m *monitor) clear(ctx context.Context) {
	for key, exec := range m.reported {
		if err := m.queue.RemoveLongRunningTask(ctx, exec); err != nil {
			m.logger.Error("Removing long-running task failed", err, logging.LogFields{"task": key})
		}
	}
	m.reported = nil
}
