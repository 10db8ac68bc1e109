package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/logging"
	"github.com/drblury/actionflow/internal/runtime/results"
)

const tracerName = "github.com/drblury/actionflow"

// Invocation is what a middleware sees of one execution.
type Invocation struct {
	Action Descriptor
	Event  events.Event

	impl Action
}

// ActionHandler runs one invocation. The innermost handler never returns a
// nil result: failures come back as an error result plus the cause.
type ActionHandler func(ctx context.Context, inv Invocation) (results.Result, error)

// Middleware wraps an ActionHandler.
type Middleware func(next ActionHandler) ActionHandler

// MiddlewareBuilder constructs a middleware using the provided service instance.
type MiddlewareBuilder func(*Service) (Middleware, error)

// MiddlewareRegistration captures how a middleware is added to the execution
// chain. A builder returning a nil middleware skips the registration.
type MiddlewareRegistration struct {
	Name       string
	Middleware Middleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the standard chain, outermost first.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		TracerMiddleware(),
		LogExecutionsMiddleware(nil),
		MetricsMiddleware(),
		StatsMiddleware(),
	}
}

// TracerMiddleware wraps each execution in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "tracer",
		Middleware: tracerMiddleware(otel.Tracer(tracerName)),
	}
}

func tracerMiddleware(tracer trace.Tracer) Middleware {
	return func(next ActionHandler) ActionHandler {
		return func(ctx context.Context, inv Invocation) (results.Result, error) {
			ctx, span := tracer.Start(ctx, inv.Action.Name, trace.WithSpanKind(trace.SpanKindConsumer))
			defer span.End()

			actx := inv.Event.Context
			span.SetAttributes(
				attribute.String("action.name", inv.Action.Name),
				attribute.String("action.kind", string(inv.Action.Kind)),
				attribute.String("deltafile.did", actx.Did),
				attribute.String("deltafile.flow", actx.Flow),
				attribute.String("host.name", actx.Hostname),
			)

			r, err := next(ctx, inv)
			if r != nil {
				span.SetAttributes(attribute.String("action.result", string(r.Type())))
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return r, err
		}
	}
}

// LogExecutionsMiddleware logs every execution at debug level. A nil logger
// selects the service logger.
func LogExecutionsMiddleware(logger logging.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_executions",
		Builder: func(s *Service) (Middleware, error) {
			l := logger
			if l == nil {
				l = s.Logger
			}
			if l == nil {
				return nil, errors.New("log executions middleware requires a logger")
			}
			return logExecutionsMiddleware(l), nil
		},
	}
}

func logExecutionsMiddleware(logger logging.ServiceLogger) Middleware {
	return func(next ActionHandler) ActionHandler {
		return func(ctx context.Context, inv Invocation) (results.Result, error) {
			logger.Debug("Executing action", logging.LogFields{
				"action":   inv.Action.Name,
				"did":      inv.Event.Context.Did,
				"messages": len(inv.Event.Messages),
			})
			r, err := next(ctx, inv)
			fields := logging.LogFields{"action": inv.Action.Name, "did": inv.Event.Context.Did}
			if r != nil {
				fields["result"] = r.Type()
			}
			if err != nil {
				logger.Error("Action returned an error result", err, fields)
			} else {
				logger.Debug("Action executed", fields)
			}
			return r, err
		}
	}
}

// MetricsMiddleware records Prometheus execution counters and latencies and
// exposes /metrics on the configured port.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(s *Service) (Middleware, error) {
			if s.Conf == nil || !s.Conf.MetricsEnabled {
				return nil, nil
			}
			m := s.getActionMetrics()
			if err := m.Register(); err != nil {
				return nil, err
			}
			if s.Conf.MetricsPort > 0 {
				s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", promhttp.Handler())
			}
			return metricsMiddleware(m), nil
		},
	}
}

func metricsMiddleware(m *ActionMetrics) Middleware {
	return func(next ActionHandler) ActionHandler {
		return func(ctx context.Context, inv Invocation) (results.Result, error) {
			start := time.Now()
			r, err := next(ctx, inv)
			m.RecordExecution(inv.Action.Name, r, time.Since(start))
			return r, err
		}
	}
}

// StatsMiddleware feeds the per-action stats shown by the web UI.
func StatsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "stats",
		Builder: func(s *Service) (Middleware, error) {
			return s.statsMiddleware(), nil
		},
	}
}

func (s *Service) statsMiddleware() Middleware {
	classifier := s.getErrorClassifier()
	return func(next ActionHandler) ActionHandler {
		return func(ctx context.Context, inv Invocation) (results.Result, error) {
			stats := s.statsFor(inv.Action.Name)
			if stats == nil {
				return next(ctx, inv)
			}
			return wrapHandlerWithStats(next, stats, classifier)(ctx, inv)
		}
	}
}

func wrapHandlerWithStats(handler ActionHandler, stats *ActionStats, classifier ErrorClassifier) ActionHandler {
	return func(ctx context.Context, inv Invocation) (results.Result, error) {
		stats.onExecutionStart()
		start := time.Now()
		r, err := handler(ctx, inv)
		stats.onExecutionFinish(time.Since(start), r, err, classifier)
		return r, err
	}
}

// RegisterMiddleware appends the middleware to the execution chain. Later
// registrations run closer to the action.
func (s *Service) RegisterMiddleware(cfg MiddlewareRegistration) error {
	var mw Middleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(s)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	s.middlewaresMu.Lock()
	s.middlewares = append(s.middlewares, mw)
	s.middlewaresMu.Unlock()
	return nil
}

// chain wraps h so that mws[0] is the outermost layer.
func chain(h ActionHandler, mws []Middleware) ActionHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
