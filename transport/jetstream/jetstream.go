// Package jetstream provides a NATS JetStream transport backed by a single
// work-queue stream. Every action topic becomes a subject in that stream and
// gets one durable pull consumer shared by all plugin replicas, so each
// message is handed to exactly one of them and removed once acked.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/actionflow/transport"
)

// TransportName is the QueueSystem value selecting this transport.
const TransportName = "nats-jetstream"

const (
	// DefaultStreamName is used when no stream is configured.
	DefaultStreamName = "ACTIONFLOW"

	// DefaultMaxDeliver bounds redeliveries of an unacked message.
	DefaultMaxDeliver = 5

	// DefaultAckWait is how long a fetched message stays invisible to other
	// consumers before it is redelivered.
	DefaultAckWait = 5 * time.Minute

	fetchWait = time.Second
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("jetstream: transport is closed")

// Connect opens the NATS connection. Tests replace it.
var Connect = func(url string, opts ...nats.Option) (*nats.Conn, error) {
	return nats.Connect(url, opts...)
}

func init() {
	Register()
}

// Register adds the transport to transport.DefaultRegistry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build creates a JetStream transport from cfg.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	t, err := New(Config{URL: cfg.GetNATSURL(), StreamName: cfg.GetNATSStream()}, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: t, Subscriber: t}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds JetStream settings.
type Config struct {
	URL        string
	StreamName string
	MaxDeliver int
	AckWait    time.Duration
	// Replicas is the stream replication factor in a clustered deployment.
	Replicas int
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	return c
}

// Transport is a message.Publisher and message.Subscriber over JetStream.
type Transport struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config Config
	logger watermill.LoggerAdapter

	subMu         sync.Mutex
	subscriptions []*nats.Subscription

	closeOnce sync.Once
	closing   chan struct{}
	wg        sync.WaitGroup
}

// New connects to NATS and makes sure the work-queue stream exists.
func New(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	if cfg.URL == "" {
		return nil, errors.New("jetstream: URL is required")
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	nc, err := Connect(cfg.URL, nats.Name("actionflow"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("jetstream: connect: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: context: %w", err)
	}

	t := &Transport{
		nc:      nc,
		js:      js,
		config:  cfg,
		logger:  logger,
		closing: make(chan struct{}),
	}
	if err := t.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) ensureStream() error {
	want := streamConfig(t.config)
	_, err := t.js.StreamInfo(want.Name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := t.js.AddStream(want); err != nil {
			return fmt.Errorf("jetstream: add stream %s: %w", want.Name, err)
		}
		t.logger.Info("Created JetStream stream", watermill.LogFields{"stream": want.Name})
	case err != nil:
		return fmt.Errorf("jetstream: stream info %s: %w", want.Name, err)
	}
	return nil
}

func streamConfig(cfg Config) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.StreamName + ".>"},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		Replicas:  cfg.Replicas,
	}
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closing:
		return true
	default:
		return false
	}
}

// Publish appends messages to the stream. The watermill UUID becomes the
// JetStream message id, so a retried publish is deduplicated by the server.
func (t *Transport) Publish(topic string, messages ...*message.Message) error {
	if t.isClosed() {
		return ErrClosed
	}
	subject := subjectFor(t.config.StreamName, topic)
	for _, msg := range messages {
		if _, err := t.js.PublishMsg(toNATS(subject, msg)); err != nil {
			return fmt.Errorf("jetstream: publish %s: %w", topic, err)
		}
	}
	return nil
}

// Subscribe binds the topic's durable consumer and streams its messages until
// ctx is done or the transport closes. A message is acked or nacked on the
// server when the receiver calls Ack or Nack.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}
	subject := subjectFor(t.config.StreamName, topic)
	durable := consumerFor(topic)

	sub, err := t.js.PullSubscribe(subject, durable,
		nats.BindStream(t.config.StreamName),
		nats.AckExplicit(),
		nats.AckWait(t.config.AckWait),
		nats.MaxDeliver(t.config.MaxDeliver),
	)
	if err != nil {
		return nil, fmt.Errorf("jetstream: subscribe %s: %w", topic, err)
	}

	t.subMu.Lock()
	t.subscriptions = append(t.subscriptions, sub)
	t.subMu.Unlock()

	output := make(chan *message.Message)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(output)
		t.consume(ctx, sub, output, topic)
	}()
	return output, nil
}

func (t *Transport) consume(ctx context.Context, sub *nats.Subscription, output chan<- *message.Message, topic string) {
	for {
		if ctx.Err() != nil || t.isClosed() {
			return
		}
		msgs, err := sub.Fetch(1, nats.MaxWait(fetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if t.isClosed() || errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return
			}
			t.logger.Error("Failed to fetch from JetStream", err, watermill.LogFields{"topic": topic})
			select {
			case <-time.After(fetchWait):
			case <-ctx.Done():
				return
			case <-t.closing:
				return
			}
			continue
		}
		for _, nm := range msgs {
			if !t.deliver(ctx, nm, output, topic) {
				return
			}
		}
	}
}

// deliver hands one message to the receiver and settles it on the server.
// It returns false when consumption should stop; the unsettled message is
// redelivered after AckWait.
func (t *Transport) deliver(ctx context.Context, nm *nats.Msg, output chan<- *message.Message, topic string) bool {
	msg := fromNATS(nm)
	msg.SetContext(ctx)

	select {
	case output <- msg:
	case <-ctx.Done():
		return false
	case <-t.closing:
		return false
	}

	var err error
	select {
	case <-msg.Acked():
		err = nm.Ack()
	case <-msg.Nacked():
		err = nm.Nak()
	case <-ctx.Done():
		return false
	case <-t.closing:
		return false
	}
	if err != nil {
		t.logger.Error("Failed to settle JetStream message", err, watermill.LogFields{
			"topic":   topic,
			"message": msg.UUID,
		})
	}
	return true
}

// Close stops every consumer and drains the connection.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closing)
		t.subMu.Lock()
		for _, sub := range t.subscriptions {
			_ = sub.Unsubscribe()
		}
		t.subscriptions = nil
		t.subMu.Unlock()
		t.wg.Wait()
		t.nc.Close()
	})
	return nil
}

// Capabilities reports the transport capabilities.
func (t *Transport) Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

func subjectFor(stream, topic string) string {
	return stream + "." + topic
}

// consumerFor derives a durable name; durable names may not contain dots.
func consumerFor(topic string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return "actionflow_" + r.Replace(topic)
}

func toNATS(subject string, msg *message.Message) *nats.Msg {
	header := nats.Header{}
	for k, v := range msg.Metadata {
		header.Set(k, v)
	}
	header.Set(nats.MsgIdHdr, msg.UUID)
	return &nats.Msg{Subject: subject, Data: msg.Payload, Header: header}
}

func fromNATS(nm *nats.Msg) *message.Message {
	id := nm.Header.Get(nats.MsgIdHdr)
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, nm.Data)
	for k, v := range nm.Header {
		if k == nats.MsgIdHdr || len(v) == 0 {
			continue
		}
		msg.Metadata.Set(k, v[0])
	}
	return msg
}
