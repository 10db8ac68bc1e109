package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/logging"
	"github.com/drblury/actionflow/internal/runtime/queue"
)

// worker consumes the queue topic of one action, one event at a time.
type worker struct {
	action   Action
	topic    string
	queue    queue.Client
	executor *Executor
	storage  content.Storage
	hostname string
	version  string
	backoff  backoff.BackOff
	logger   logging.ServiceLogger
	now      func() time.Time
}

func (w *worker) run(ctx context.Context) {
	w.logger.Info("Worker started", logging.LogFields{"topic": w.topic})
	w.backoff.Reset()
	for ctx.Err() == nil {
		err := w.iterate(ctx)
		if err == nil {
			w.backoff.Reset()
			continue
		}
		if ctx.Err() != nil {
			break
		}
		delay := w.backoff.NextBackOff()
		w.logger.Error("Worker iteration failed", err, logging.LogFields{"backoff": delay.String()})
		sleep(ctx, delay)
	}
	w.logger.Info("Worker stopped", logging.LogFields{"topic": w.topic})
}

// iterate takes one work item, executes it and publishes the response. A nil
// error means the loop may continue at once.
func (w *worker) iterate(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()

	raw, err := w.queue.Take(ctx, w.topic)
	if err != nil {
		return fmt.Errorf("take from %s: %w", w.topic, err)
	}

	ev, err := events.Decode(raw, w.hostname, w.storage)
	var emptyErr *events.EmptyContentError
	if errors.As(err, &emptyErr) {
		ev.Context.ActionVersion = w.version
		return w.reject(ctx, ev, err)
	}
	if err != nil {
		w.logger.Error("Discarding malformed work item", err, logging.LogFields{"size": len(raw)})
		return nil
	}
	ev.Context.ActionVersion = w.version

	// In-flight actions are never cancelled; the response is published even
	// while the service is stopping.
	runCtx := context.WithoutCancel(ctx)
	start := w.now()
	r, _ := w.executor.Execute(runCtx, w.action, ev)
	stop := w.now()

	if err := PublishResult(runCtx, w.queue, ev, start, stop, r); err != nil {
		return fmt.Errorf("did %s: %w", ev.Context.Did, err)
	}
	return nil
}

// reject answers for an item whose content could not be used, without running
// the action.
func (w *worker) reject(ctx context.Context, ev events.Event, cause error) error {
	w.logger.Error("Rejecting work item with unusable content", cause, logging.LogFields{"did": ev.Context.Did})
	now := w.now()
	if err := PublishResult(context.WithoutCancel(ctx), w.queue, ev, now, now, faultResult(cause, nil)); err != nil {
		return fmt.Errorf("did %s: %w", ev.Context.Did, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
