// Package rabbitmq provides a RabbitMQ/AMQP transport. Each action topic maps
// to a durable queue of the same name, so plugin replicas compete for work
// instead of each receiving a copy.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/actionflow/transport"
)

// TransportName is the QueueSystem value selecting this transport.
const TransportName = "rabbitmq"

// Factories are swapped in tests so Build runs without a broker.
var (
	ConnectionFactory = amqp.NewConnection
	PublisherFactory  = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
		return amqp.NewPublisherWithConnection(cfg, logger, conn)
	}
	SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
		return amqp.NewSubscriberWithConnection(cfg, logger, conn)
	}
)

func init() {
	Register()
}

// Register adds the transport to transport.DefaultRegistry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// QueueConfig is the AMQP setup shared by publisher and subscriber: durable
// queues named after the topic, consumed one delivery at a time so a busy
// replica does not hold work another replica could take.
func QueueConfig(url string) amqp.Config {
	cfg := amqp.NewDurableQueueConfig(url)
	cfg.Consume.Qos.PrefetchCount = 1
	return cfg
}

// Build creates a RabbitMQ transport over a single reconnecting connection.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetRabbitMQURL()
	if url == "" {
		return transport.Transport{}, errors.New("rabbitmq: URL is required")
	}

	conn, err := ConnectionFactory(amqp.ConnectionConfig{AmqpURI: url, Reconnect: amqp.DefaultReconnectConfig()}, logger)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("rabbitmq: connect: %w", err)
	}

	queueCfg := QueueConfig(url)
	pub, err := PublisherFactory(queueCfg, logger, conn)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("rabbitmq: publisher: %w", err)
	}
	sub, err := SubscriberFactory(queueCfg, logger, conn)
	if err != nil {
		return transport.Transport{}, errors.Join(fmt.Errorf("rabbitmq: subscriber: %w", err), pub.Close())
	}
	return transport.Transport{Publisher: pub, Subscriber: sub}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}
