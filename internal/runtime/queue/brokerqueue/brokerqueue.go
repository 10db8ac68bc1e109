// Package brokerqueue implements queue.Client over a watermill transport so a
// plugin can take work from Kafka, RabbitMQ, NATS, SNS/SQS or HTTP instead of
// Redis.
//
// A taken message is acked as soon as it is handed to the caller, matching the
// pop semantics of the Redis queue. Heartbeats and long-running records have
// no native broker equivalent; they are published as small JSON messages on
// HeartbeatTopic and LongRunningTasksTopic and mirrored in memory.
package brokerqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/ids"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	"github.com/drblury/actionflow/internal/runtime/logging"
	"github.com/drblury/actionflow/internal/runtime/metadata"
	"github.com/drblury/actionflow/internal/runtime/queue"
	"github.com/drblury/actionflow/transport"
)

const (
	HeartbeatTopic        = "org.deltafi.action-queue.heartbeat"
	LongRunningTasksTopic = "org.deltafi.action-queue.long-running-tasks"

	// MetadataTopic carries the destination topic on every published message.
	MetadataTopic = "actionflow_topic"
	// MetadataOperation is "record" or "remove" on long-running messages.
	MetadataOperation = "actionflow_op"
)

// Heartbeat is the body published on HeartbeatTopic.
type Heartbeat struct {
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// LongRunningTask is the body published on LongRunningTasksTopic.
type LongRunningTask struct {
	Key       string    `json:"key"`
	ClassName string    `json:"className"`
	Action    string    `json:"action"`
	Did       string    `json:"did"`
	StartTime time.Time `json:"startTime"`
	Heartbeat time.Time `json:"heartbeat"`
}

// Client is a queue.Client on top of a transport.Transport.
type Client struct {
	tr     transport.Transport
	caps   transport.Capabilities
	logger logging.ServiceLogger
	now    func() time.Time

	// subscriptions outlive individual Take calls.
	subCtx    context.Context
	subCancel context.CancelFunc

	mu          sync.Mutex
	subs        map[string]<-chan *message.Message
	heartbeats  map[string]time.Time
	longRunning map[string]LongRunningTask
	closed      bool
}

var _ queue.Client = (*Client)(nil)

// New wraps tr. A warning is logged when the transport cannot share a topic
// between replicas.
func New(tr transport.Transport, caps transport.Capabilities, logger logging.ServiceLogger) (*Client, error) {
	if tr.Publisher == nil || tr.Subscriber == nil {
		return nil, fmt.Errorf("brokerqueue: %w", errorspkg.ErrQueueRequired)
	}
	if logger == nil {
		logger = logging.NewNopServiceLogger()
	}
	logger = logger.With(logging.LogFields{"transport": caps.Name})
	if !caps.SafeForReplicas() {
		logger.Info("Transport does not support competing consumers; run a single replica", nil)
	}
	if !caps.SupportsAck {
		logger.Info("Transport has no acknowledgements; work may be lost on restart", nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		tr:          tr,
		caps:        caps,
		logger:      logger,
		now:         time.Now,
		subCtx:      ctx,
		subCancel:   cancel,
		subs:        make(map[string]<-chan *message.Message),
		heartbeats:  make(map[string]time.Time),
		longRunning: make(map[string]LongRunningTask),
	}, nil
}

// Capabilities reports the wrapped transport's capabilities.
func (c *Client) Capabilities() transport.Capabilities {
	return c.caps
}

func (c *Client) subscription(topic string) (<-chan *message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errorspkg.ErrQueueClosed
	}
	if ch, ok := c.subs[topic]; ok {
		return ch, nil
	}
	ch, err := c.tr.Subscriber.Subscribe(c.subCtx, topic)
	if err != nil {
		return nil, fmt.Errorf("brokerqueue: subscribe %s: %w", topic, err)
	}
	c.subs[topic] = ch
	return ch, nil
}

// Take returns the next payload published to topic. The first call for a
// topic subscribes to it.
func (c *Client) Take(ctx context.Context, topic string) ([]byte, error) {
	if topic == "" {
		return nil, errorspkg.ErrTopicRequired
	}
	ch, err := c.subscription(topic)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-ch:
		if !ok {
			return nil, errorspkg.ErrQueueClosed
		}
		payload := append([]byte(nil), msg.Payload...)
		msg.Ack()
		return payload, nil
	}
}

// Put publishes payload to topic under a fresh ULID message id.
func (c *Client) Put(_ context.Context, topic string, payload []byte) error {
	if topic == "" {
		return errorspkg.ErrTopicRequired
	}
	return c.publish(topic, payload, metadata.New(MetadataTopic, topic))
}

func (c *Client) publish(topic string, payload []byte, md metadata.Metadata) error {
	if c.isClosed() {
		return errorspkg.ErrQueueClosed
	}
	if !c.caps.Fits(len(payload)) {
		return fmt.Errorf("brokerqueue: publish %s: payload of %d bytes exceeds the %d byte limit", topic, len(payload), c.caps.MaxMessageSize)
	}
	msg := message.NewMessage(ids.CreateULID(), payload)
	msg.Metadata = metadata.ToWatermill(md)
	if err := c.tr.Publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("brokerqueue: publish %s: %w", topic, err)
	}
	return nil
}

// Heartbeat publishes the current time for topic.
func (c *Client) Heartbeat(_ context.Context, topic string) error {
	now := c.now()
	body, err := jsoncodec.Marshal(Heartbeat{Topic: topic, Timestamp: now})
	if err != nil {
		return fmt.Errorf("brokerqueue: encode heartbeat: %w", err)
	}
	if err := c.publish(HeartbeatTopic, body, metadata.New(MetadataTopic, topic)); err != nil {
		return err
	}
	c.mu.Lock()
	c.heartbeats[topic] = now
	c.mu.Unlock()
	return nil
}

// RecordLongRunningTask publishes the execution with the current time.
func (c *Client) RecordLongRunningTask(_ context.Context, exec queue.ActionExecution) error {
	task := LongRunningTask{
		Key:       exec.Key(),
		ClassName: exec.ClassName,
		Action:    exec.Action,
		Did:       exec.Did,
		StartTime: exec.StartTime,
		Heartbeat: c.now(),
	}
	if err := c.publishTask(task, "record"); err != nil {
		return err
	}
	c.mu.Lock()
	c.longRunning[task.Key] = task
	c.mu.Unlock()
	return nil
}

// RemoveLongRunningTask publishes the removal of the execution's record.
func (c *Client) RemoveLongRunningTask(_ context.Context, exec queue.ActionExecution) error {
	task := LongRunningTask{
		Key:       exec.Key(),
		ClassName: exec.ClassName,
		Action:    exec.Action,
		Did:       exec.Did,
		StartTime: exec.StartTime,
		Heartbeat: c.now(),
	}
	if err := c.publishTask(task, "remove"); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.longRunning, task.Key)
	c.mu.Unlock()
	return nil
}

func (c *Client) publishTask(task LongRunningTask, op string) error {
	body, err := jsoncodec.Marshal(task)
	if err != nil {
		return fmt.Errorf("brokerqueue: encode long-running task: %w", err)
	}
	return c.publish(LongRunningTasksTopic, body, metadata.New(MetadataOperation, op))
}

// Heartbeats returns the last heartbeat sent per topic.
func (c *Client) Heartbeats() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Time, len(c.heartbeats))
	for k, v := range c.heartbeats {
		out[k] = v
	}
	return out
}

// LongRunningTasks returns the records currently published as running.
func (c *Client) LongRunningTasks() map[string]LongRunningTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]LongRunningTask, len(c.longRunning))
	for k, v := range c.longRunning {
		out[k] = v
	}
	return out
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close ends all subscriptions and closes the transport. It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.subCancel()
	return c.tr.Close()
}
