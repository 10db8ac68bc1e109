package jetstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/actionflow/transport"
	"github.com/drblury/actionflow/transport/transporttest"
)

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	t.Cleanup(func() { transport.DefaultRegistry = original })
	transport.DefaultRegistry = transport.NewRegistry()

	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "nats-jetstream", caps.Name)
	assert.True(t, caps.SafeForReplicas())
	assert.Equal(t, transport.NATSJetStreamCapabilities, Capabilities())
}

func TestConfigWithDefaults(t *testing.T) {
	t.Run("empty config gets defaults", func(t *testing.T) {
		got := Config{}.withDefaults()
		assert.Equal(t, DefaultStreamName, got.StreamName)
		assert.Equal(t, DefaultMaxDeliver, got.MaxDeliver)
		assert.Equal(t, DefaultAckWait, got.AckWait)
		assert.Equal(t, 1, got.Replicas)
	})

	t.Run("custom values preserved", func(t *testing.T) {
		cfg := Config{URL: "nats://localhost:4222", StreamName: "PLUGINS", MaxDeliver: 9, AckWait: time.Minute, Replicas: 3}
		assert.Equal(t, cfg, cfg.withDefaults())
	})

	t.Run("negative values get defaults", func(t *testing.T) {
		got := Config{MaxDeliver: -1, AckWait: -1, Replicas: -1}.withDefaults()
		assert.Equal(t, DefaultMaxDeliver, got.MaxDeliver)
		assert.Equal(t, DefaultAckWait, got.AckWait)
		assert.Equal(t, 1, got.Replicas)
	})
}

func TestStreamConfigIsWorkQueue(t *testing.T) {
	sc := streamConfig(Config{StreamName: "PLUGINS", Replicas: 3})
	assert.Equal(t, "PLUGINS", sc.Name)
	assert.Equal(t, []string{"PLUGINS.>"}, sc.Subjects)
	assert.Equal(t, nats.WorkQueuePolicy, sc.Retention)
	assert.Equal(t, 3, sc.Replicas)
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "ACTIONFLOW.org.example.Upper", subjectFor("ACTIONFLOW", "org.example.Upper"))
	assert.Equal(t, "actionflow_org_example_Upper", consumerFor("org.example.Upper"))
	assert.Equal(t, "actionflow_dgs-node_1", consumerFor("dgs-node.1"))
}

func TestMessageConversion(t *testing.T) {
	msg := message.NewMessage("msg-1", []byte(`{"did":"1"}`))
	msg.Metadata.Set("returnAddress", "node-1")

	nm := toNATS("ACTIONFLOW.dgs", msg)
	assert.Equal(t, "ACTIONFLOW.dgs", nm.Subject)
	assert.Equal(t, "msg-1", nm.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, "node-1", nm.Header.Get("returnAddress"))

	back := fromNATS(nm)
	assert.Equal(t, "msg-1", back.UUID)
	assert.Equal(t, msg.Payload, back.Payload)
	assert.Equal(t, "node-1", back.Metadata.Get("returnAddress"))
	assert.Empty(t, back.Metadata.Get(nats.MsgIdHdr))
}

func TestFromNATSGeneratesMissingID(t *testing.T) {
	msg := fromNATS(&nats.Msg{Data: []byte("x"), Header: nats.Header{}})
	assert.NotEmpty(t, msg.UUID)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorContains(t, err, "URL is required")

	original := Connect
	t.Cleanup(func() { Connect = original })
	Connect = func(string, ...nats.Option) (*nats.Conn, error) {
		return nil, errors.New("no servers available")
	}
	_, err = Build(context.Background(), &transporttest.Config{NATSURL: "nats://localhost:4222"}, watermill.NopLogger{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no servers available")
}
