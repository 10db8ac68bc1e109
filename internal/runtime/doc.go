/*
Package runtime hosts plugin actions for the deltafile orchestrator.

# Architecture Overview

A plugin registers one or more actions on a Service. Start runs one worker per
action. Each worker takes work items from the action's queue topic, decodes
them into an Event, runs the action inside the Executor and publishes exactly
one result envelope to the response topic ("dgs" or "dgs-{returnAddress}").

# Package Structure

## Core Service (service.go)

The Service struct wires together:
  - the queue client (Redis sorted sets or a watermill transport)
  - content storage (S3/MinIO or memory)
  - the middleware chain around every execution
  - the heartbeat monitor
  - HTTP servers for metrics and the web UI
  - plugin registration with the orchestrator core

## Actions (action.go, registration.go)

An Action has a Descriptor naming its kind. The kind decides which result
variants it may return; error results are always allowed. The Registry rejects
duplicate names, unknown kinds and parameter schemas that do not compile.

## Execution (executor.go, worker.go, middleware.go)

The Executor converts every fault into an error result: returned errors,
panics, nil results, results the kind does not allow and invalid parameters.
Middlewares see the Invocation and the result:
  - Tracer: OpenTelemetry span per execution
  - LogExecutions: debug logging
  - Metrics: Prometheus counters and latencies
  - Stats: per-action statistics for the web UI
  - JobHooks: OnJobStart, OnJobDone and OnJobError callbacks

## Liveness (monitor.go, active.go)

The monitor heartbeats every action topic and records executions that exceed
the long-running threshold, removing them once they finish.

## Registration (registrar.go)

The plugin manifest lists the actions, optional flow plans and variables, and
is POSTed to {coreURL}/plugins with retries.

# Sub-packages

  - config/: Service configuration with validation
  - content/: content references and segment storage
  - errors/: sentinel errors
  - events/: Event model and work item decoding
  - results/: result variants, builders and envelope encoding
  - queue/: queue client contract and its Redis and broker implementations
  - logging/: logger interface and adapters
  - metadata/: metadata maps
  - jsoncodec/: JSON marshaling
  - ids/: identifier generation
*/
package runtime
