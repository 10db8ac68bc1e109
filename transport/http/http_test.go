package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	watermillhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/actionflow/transport"
	"github.com/drblury/actionflow/transport/transporttest"
)

func stubFactories(t *testing.T, pub message.Publisher, pubErr error, sub message.Subscriber, subErr error) *watermillhttp.PublisherConfig {
	t.Helper()
	origPub, origSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory = origPub
		SubscriberFactory = origSub
	})
	var pc watermillhttp.PublisherConfig
	PublisherFactory = func(cfg watermillhttp.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		pc = cfg
		return pub, pubErr
	}
	SubscriberFactory = func(string, watermillhttp.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
		return sub, subErr
	}
	return &pc
}

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	t.Cleanup(func() { transport.DefaultRegistry = original })
	transport.DefaultRegistry = transport.NewRegistry()

	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "http", caps.Name)
	assert.False(t, caps.SupportsReliableDelivery())
	assert.Equal(t, transport.HTTPCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	pub := &transporttest.Publisher{}
	sub := &transporttest.Subscriber{}
	pc := stubFactories(t, pub, nil, sub, nil)

	tr, err := Build(context.Background(), &transporttest.Config{
		HTTPServerAddress: ":8080",
		HTTPPublisherURL:  "http://core:8080/queue/",
	}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, pub, tr.Publisher)
	assert.Same(t, sub, tr.Subscriber)

	req, err := pc.MarshalMessageFunc("dgs", message.NewMessage("id-1", []byte("{}")))
	require.NoError(t, err)
	assert.Equal(t, nethttp.MethodPost, req.Method)
	assert.Equal(t, "http://core:8080/queue/dgs", req.URL.String())
}

func TestTopicURL(t *testing.T) {
	assert.Equal(t, "http://h/dgs", topicURL("http://h", "dgs"))
	assert.Equal(t, "http://h/dgs", topicURL("http://h/", "dgs"))
}

func TestBuildErrors(t *testing.T) {
	cfg := &transporttest.Config{HTTPServerAddress: ":8080"}

	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorContains(t, err, "required")

	stubFactories(t, nil, errors.New("publisher error"), nil, nil)
	_, err = Build(context.Background(), cfg, watermill.NopLogger{})
	assert.ErrorContains(t, err, "publisher error")

	pub := &transporttest.Publisher{}
	stubFactories(t, pub, nil, nil, errors.New("subscriber error"))
	_, err = Build(context.Background(), cfg, watermill.NopLogger{})
	assert.ErrorContains(t, err, "subscriber error")
	assert.True(t, pub.Closed())
}
