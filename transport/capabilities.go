package transport

// Capabilities describes how a broker behaves when used as an action queue.
type Capabilities struct {
	Name string

	// SupportsAck reports explicit acknowledgement; unacknowledged work is
	// redelivered after a crash.
	SupportsAck bool
	// SupportsNack reports negative acknowledgement (immediate redelivery).
	SupportsNack bool
	// SupportsOrdering reports in-order delivery per topic.
	SupportsOrdering bool
	// SupportsCompetingConsumers reports that several plugin replicas
	// subscribed to one topic share its work instead of each receiving a copy.
	SupportsCompetingConsumers bool
	// SupportsTracing reports native propagation of tracing headers.
	SupportsTracing bool

	// MaxMessageSize in bytes, 0 when unlimited or unknown.
	MaxMessageSize int64
}

// SupportsReliableDelivery reports at-least-once delivery (ack and nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// SafeForReplicas reports whether running more than one replica of a plugin
// on this transport processes each work item once.
func (c Capabilities) SafeForReplicas() bool {
	return c.SupportsCompetingConsumers
}

// Fits reports whether a payload of size bytes is within MaxMessageSize.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize == 0 || int64(size) <= c.MaxMessageSize
}

var (
	ChannelCapabilities = Capabilities{
		Name:                       "channel",
		SupportsAck:                true,
		SupportsNack:               true,
		SupportsOrdering:           true,
		SupportsCompetingConsumers: false,
	}

	KafkaCapabilities = Capabilities{
		Name:                       "kafka",
		SupportsAck:                true,
		SupportsOrdering:           true,
		SupportsCompetingConsumers: true,
		SupportsTracing:            true,
		MaxMessageSize:             1 << 20,
	}

	RabbitMQCapabilities = Capabilities{
		Name:                       "rabbitmq",
		SupportsAck:                true,
		SupportsNack:               true,
		SupportsOrdering:           true,
		SupportsCompetingConsumers: true,
		SupportsTracing:            true,
	}

	NATSCapabilities = Capabilities{
		Name:                       "nats",
		SupportsCompetingConsumers: true,
		SupportsTracing:            true,
		MaxMessageSize:             1 << 20,
	}

	NATSJetStreamCapabilities = Capabilities{
		Name:                       "nats-jetstream",
		SupportsAck:                true,
		SupportsNack:               true,
		SupportsOrdering:           true,
		SupportsCompetingConsumers: true,
		SupportsTracing:            true,
		MaxMessageSize:             1 << 20,
	}

	AWSCapabilities = Capabilities{
		Name:                       "aws",
		SupportsAck:                true,
		SupportsNack:               true,
		SupportsCompetingConsumers: true,
		SupportsTracing:            true,
		MaxMessageSize:             256 << 10,
	}

	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}
)

// GetCapabilities returns the capabilities DefaultRegistry holds for name.
func GetCapabilities(name string) Capabilities {
	return DefaultRegistry.GetCapabilities(name)
}
