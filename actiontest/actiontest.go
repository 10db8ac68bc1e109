// Package actiontest runs actions in unit tests. Events are built against
// in-memory content storage and executed by the same executor the service
// uses, so panics and lookup failures turn into error results exactly as
// they do in production.
package actiontest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drblury/actionflow/internal/runtime"
	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	"github.com/drblury/actionflow/internal/runtime/metadata"
	"github.com/drblury/actionflow/internal/runtime/results"
)

const (
	DefaultDid      = "did"
	DefaultHostname = "hostname"
	DefaultFilename = "filename"
)

type pendingContent struct {
	name      string
	mediaType string
	data      []byte
}

// EventBuilder assembles an Event with a single input message.
type EventBuilder struct {
	actx       events.ActionContext
	msg        events.DeltaFileMessage
	params     json.RawMessage
	paramsErr  error
	pending    []pendingContent
	storage    *content.MemoryStorage
	returnAddr string
}

// NewEvent starts an event for the action named "{flow}.{action}".
func NewEvent(name string) *EventBuilder {
	flow, action := events.SplitName(name)
	storage := content.NewMemoryStorage()
	return &EventBuilder{
		actx: events.ActionContext{
			Did:         DefaultDid,
			Name:        name,
			Flow:        flow,
			Action:      action,
			IngressFlow: flow,
			EgressFlow:  flow,
			SystemName:  "test",
			Hostname:    DefaultHostname,
			Storage:     storage,
		},
		msg: events.DeltaFileMessage{
			SourceFilename: DefaultFilename,
			Metadata:       metadata.Metadata{},
			SourceMetadata: metadata.Metadata{},
		},
		storage: storage,
	}
}

func (b *EventBuilder) Did(did string) *EventBuilder {
	b.actx.Did = did
	return b
}

func (b *EventBuilder) SourceFilename(name string) *EventBuilder {
	b.msg.SourceFilename = name
	return b
}

func (b *EventBuilder) Metadata(key, value string) *EventBuilder {
	b.msg.Metadata[key] = value
	return b
}

func (b *EventBuilder) SourceMetadata(key, value string) *EventBuilder {
	b.msg.SourceMetadata[key] = value
	return b
}

// Params sets the action parameters to the JSON encoding of v.
func (b *EventBuilder) Params(v any) *EventBuilder {
	raw, err := jsoncodec.Marshal(v)
	b.params, b.paramsErr = raw, err
	return b
}

func (b *EventBuilder) RawParams(raw string) *EventBuilder {
	b.params, b.paramsErr = json.RawMessage(raw), nil
	return b
}

// Content stores data and appends it to the message content list on Build.
func (b *EventBuilder) Content(name, mediaType string, data []byte) *EventBuilder {
	b.pending = append(b.pending, pendingContent{name: name, mediaType: mediaType, data: data})
	return b
}

func (b *EventBuilder) ContentString(name, mediaType, data string) *EventBuilder {
	return b.Content(name, mediaType, []byte(data))
}

func (b *EventBuilder) Domain(name, value, mediaType string) *EventBuilder {
	b.msg.Domains = append(b.msg.Domains, events.Domain{Name: name, Value: value, MediaType: mediaType})
	return b
}

func (b *EventBuilder) Enrichment(name, value, mediaType string) *EventBuilder {
	b.msg.Enrichments = append(b.msg.Enrichments, events.Enrichment{Name: name, Value: value, MediaType: mediaType})
	return b
}

func (b *EventBuilder) ReturnAddress(addr string) *EventBuilder {
	b.returnAddr = addr
	return b
}

// Storage is the in-memory storage backing the event's content.
func (b *EventBuilder) Storage() *content.MemoryStorage { return b.storage }

// Build stores pending content and returns the event.
func (b *EventBuilder) Build(t testing.TB) events.Event {
	t.Helper()
	require.NoError(t, b.paramsErr, "encode params")

	msg := b.msg
	msg.Metadata = b.msg.Metadata.Clone()
	msg.SourceMetadata = b.msg.SourceMetadata.Clone()
	msg.Content = nil
	for _, p := range b.pending {
		c, err := content.Save(context.Background(), b.storage, b.actx.Did, p.data, p.name, p.mediaType)
		require.NoError(t, err, "store content %s", p.name)
		msg.Content = append(msg.Content, c)
	}

	params := b.params
	if params == nil {
		params = json.RawMessage(`{}`)
	}
	return events.Event{
		Messages:      []events.DeltaFileMessage{msg},
		Context:       b.actx,
		Params:        params,
		QueueName:     b.actx.Name,
		ReturnAddress: b.returnAddr,
	}
}

// Run executes a against ev. The error is the fault behind an error result,
// if any.
func Run(a runtime.Action, ev events.Event) (results.Result, error) {
	return runtime.NewExecutor(runtime.ExecutorOptions{}).Execute(context.Background(), a, ev)
}
