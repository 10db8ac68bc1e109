// Package queue defines the client contract the runtime needs from the
// orchestrator's queue.
package queue

import (
	"context"
	"time"
)

// ResponseTopic is the default topic responses are published to.
const ResponseTopic = "dgs"

// Client is the queue as seen by a plugin. Take is the only call expected to
// block; it returns when a work item is available or ctx is done.
type Client interface {
	Take(ctx context.Context, topic string) ([]byte, error)
	Put(ctx context.Context, topic string, payload []byte) error
	Heartbeat(ctx context.Context, topic string) error
	RecordLongRunningTask(ctx context.Context, exec ActionExecution) error
	RemoveLongRunningTask(ctx context.Context, exec ActionExecution) error
	Close() error
}

// ResponseTopicFor returns the topic a response is published to. A non-empty
// return address selects "dgs-{returnAddress}".
func ResponseTopicFor(returnAddress string) string {
	if returnAddress == "" {
		return ResponseTopic
	}
	return ResponseTopic + "-" + returnAddress
}

// ActionExecution records one in-flight action invocation.
type ActionExecution struct {
	// ClassName is the qualified action name, which is also its queue topic.
	ClassName string
	// Action is the "{flow}.{action}" name carried by the event.
	Action    string
	Did       string
	StartTime time.Time
}

// Key identifies the execution as "class:action:did".
func (e ActionExecution) Key() string {
	return e.ClassName + ":" + e.Action + ":" + e.Did
}

// Elapsed is the time spent since StartTime.
func (e ActionExecution) Elapsed(now time.Time) time.Duration {
	return now.Sub(e.StartTime)
}

// ExceedsThreshold reports whether the execution has run longer than threshold.
func (e ActionExecution) ExceedsThreshold(now time.Time, threshold time.Duration) bool {
	return e.Elapsed(now) > threshold
}
