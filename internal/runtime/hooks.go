package runtime

import (
	"context"
	"time"

	"github.com/drblury/actionflow/internal/runtime/logging"
	"github.com/drblury/actionflow/internal/runtime/results"
)

// JobContext describes one action execution to hooks.
type JobContext struct {
	// ActionName is the qualified name of the action.
	ActionName string
	Kind       Kind
	// Did identifies the unit of work.
	Did string
	// Flow is the flow the action runs in.
	Flow    string
	Context context.Context
	// StartedAt is when the execution began.
	StartedAt time.Time
	// Duration is only set in OnJobDone and OnJobError.
	Duration time.Duration
	// ResultType is the type of the produced result. Only set in OnJobDone
	// and OnJobError.
	ResultType results.Type
}

// JobHooks defines callbacks around action executions. Nil hooks are skipped.
type JobHooks struct {
	// OnJobStart runs before the action is invoked.
	OnJobStart func(ctx JobContext)
	// OnJobDone runs after the action produced a non-error result.
	OnJobDone func(ctx JobContext)
	// OnJobError runs when the action failed. The error result that is
	// published in its place is reflected in ResultType.
	OnJobError func(ctx JobContext, err error)
}

// Merge returns hooks that call h first, then other.
func (h JobHooks) Merge(other JobHooks) JobHooks {
	return JobHooks{
		OnJobStart: chainHooks(h.OnJobStart, other.OnJobStart),
		OnJobDone:  chainHooks(h.OnJobDone, other.OnJobDone),
		OnJobError: chainErrorHooks(h.OnJobError, other.OnJobError),
	}
}

func (h JobHooks) empty() bool {
	return h.OnJobStart == nil && h.OnJobDone == nil && h.OnJobError == nil
}

func chainHooks(a, b func(JobContext)) func(JobContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx JobContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(JobContext, error)) func(JobContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx JobContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// JobHooksMiddleware invokes hooks around every action execution.
func JobHooksMiddleware(hooks JobHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "job_hooks",
		Middleware: jobHooksMiddleware(hooks),
	}
}

func jobHooksMiddleware(hooks JobHooks) Middleware {
	return func(next ActionHandler) ActionHandler {
		return func(ctx context.Context, inv Invocation) (results.Result, error) {
			jobCtx := JobContext{
				ActionName: inv.Action.Name,
				Kind:       inv.Action.Kind,
				Did:        inv.Event.Context.Did,
				Flow:       inv.Event.Context.Flow,
				Context:    ctx,
				StartedAt:  time.Now(),
			}
			if hooks.OnJobStart != nil {
				hooks.OnJobStart(jobCtx)
			}

			r, err := next(ctx, inv)

			jobCtx.Duration = time.Since(jobCtx.StartedAt)
			if r != nil {
				jobCtx.ResultType = r.Type()
			}
			if err != nil {
				if hooks.OnJobError != nil {
					hooks.OnJobError(jobCtx, err)
				}
			} else if hooks.OnJobDone != nil {
				hooks.OnJobDone(jobCtx)
			}
			return r, err
		}
	}
}

// LoggingHooks logs execution lifecycle events.
func LoggingHooks(logger logging.ServiceLogger) JobHooks {
	return JobHooks{
		OnJobStart: func(ctx JobContext) {
			logger.Debug("Action started", logging.LogFields{
				"action": ctx.ActionName,
				"did":    ctx.Did,
				"flow":   ctx.Flow,
			})
		},
		OnJobDone: func(ctx JobContext) {
			logger.Info("Action completed", logging.LogFields{
				"action":      ctx.ActionName,
				"did":         ctx.Did,
				"result":      ctx.ResultType,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnJobError: func(ctx JobContext, err error) {
			logger.Error("Action failed", err, logging.LogFields{
				"action":      ctx.ActionName,
				"did":         ctx.Did,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks forwards lifecycle events to counters keyed by action name.
func MetricsHooks(onStart, onDone, onError func(actionName string)) JobHooks {
	return JobHooks{
		OnJobStart: func(ctx JobContext) {
			if onStart != nil {
				onStart(ctx.ActionName)
			}
		},
		OnJobDone: func(ctx JobContext) {
			if onDone != nil {
				onDone(ctx.ActionName)
			}
		},
		OnJobError: func(ctx JobContext, _ error) {
			if onError != nil {
				onError(ctx.ActionName)
			}
		},
	}
}

// AlertingHooks calls alertFunc for every failed execution.
func AlertingHooks(alertFunc func(ctx JobContext, err error)) JobHooks {
	return JobHooks{OnJobError: alertFunc}
}
