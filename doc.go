// Package actionflow hosts deltafile actions in a plugin process. A plugin
// registers actions on a Service; Start announces the plugin to the
// orchestrator core, then runs one worker per action. Each worker takes work
// items from the action's queue topic, runs the action and publishes exactly
// one result envelope to the response topic.
//
// Actions declare a Kind. The kind decides which results the action may
// return: TRANSFORM actions return transforms, LOAD actions return loads and
// so on. Any action may return an error result, and any error or panic raised
// by the action is converted into one, so the orchestrator always gets a
// response. A minimal plugin fills Config (or calls ConfigFromEnv), creates a
// Service, registers actions with RegisterAction and calls Start.
//
// # Queues
//
// The native queue is Redis sorted sets, shared with the orchestrator core.
// Setting QueueSystem to a registered transport name moves the plugin onto a
// Watermill broker instead:
//   - channel: In-memory Go channels for testing
//   - kafka: High-throughput streaming with consumer groups
//   - rabbitmq: AMQP-based durable queues
//   - aws: AWS SNS/SQS with LocalStack support
//   - nats: Core NATS and JetStream
//   - http: Request/response messaging
//
// # Middleware
//
// The default chain wraps every execution with an OpenTelemetry span, debug
// logging, Prometheus metrics and the statistics served by the web UI at
// /api/actions. Custom middleware can be added via
// ServiceDependencies.Middlewares.
//
// # Job Hooks
//
// JobHooksMiddleware provides OnJobStart, OnJobDone, and OnJobError callbacks
// around action execution. They see the error behind every error result,
// including recovered panics.
//
// # Testing actions
//
// The actiontest package runs an action through the same executor the
// service uses, against in-memory content storage, and offers assertions on
// the returned result.
package actionflow
