package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/actionflow/internal/runtime/content"
	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
)

const workItem = `{
  "deltaFileMessages": [{
    "sourceFilename": "input.txt",
    "metadata": {"a": "1", "b": "2"},
    "sourceMetadata": {"origin": "sftp"},
    "contentList": [{"name": "input.txt", "mediaType": "text/plain",
      "segments": [{"uuid": "seg-1", "offset": 0, "size": 42, "did": "did-1"}]}],
    "domains": [{"name": "order", "value": "{}", "mediaType": "application/json"}],
    "enrichments": [{"name": "geo", "value": "US", "mediaType": "text/plain"}]
  }],
  "actionContext": {"did": "did-1", "name": "smoke.Upper", "ingressFlow": "smoke",
    "egressFlow": "out", "systemName": "prod"},
  "actionParams": {"suffix": "!"},
  "queueName": "org.example.Upper",
  "returnAddress": "core-1"
}`

func TestDecode(t *testing.T) {
	st := content.NewMemoryStorage()
	ev, err := Decode([]byte(workItem), "host-1", st)
	require.NoError(t, err)

	assert.Equal(t, "did-1", ev.Context.Did)
	assert.Equal(t, "smoke.Upper", ev.Context.Name)
	assert.Equal(t, "smoke", ev.Context.Flow)
	assert.Equal(t, "Upper", ev.Context.Action)
	assert.Equal(t, "smoke", ev.Context.IngressFlow)
	assert.Equal(t, "out", ev.Context.EgressFlow)
	assert.Equal(t, "prod", ev.Context.SystemName)
	assert.Equal(t, "host-1", ev.Context.Hostname)
	assert.Same(t, st, ev.Context.Storage)
	assert.Equal(t, "core-1", ev.ReturnAddress)
	assert.Equal(t, "org.example.Upper", ev.QueueName)
	assert.JSONEq(t, `{"suffix":"!"}`, string(ev.Params))

	require.Len(t, ev.Messages, 1)
	msg := ev.Message()
	assert.Equal(t, "input.txt", msg.SourceFilename)
	assert.Equal(t, "1", msg.MetadataOr("a", ""))
	c, err := msg.FirstContent()
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.Size())
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "{"},
		{"missing did", `{"actionContext":{"name":"f.a"}}`},
		{"missing name", `{"actionContext":{"did":"d"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw), "h", nil)
			assert.Error(t, err)
		})
	}

	_, err := Decode(nil, "h", nil)
	assert.ErrorIs(t, err, errorspkg.ErrEventPayloadRequired)
}

func TestDecodeDefaultsParamsAndMetadata(t *testing.T) {
	ev, err := Decode([]byte(`{"actionContext":{"did":"d","name":"Solo"},"deltaFileMessages":[{}]}`), "h", nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(ev.Params))
	assert.Equal(t, "", ev.Context.Flow)
	assert.Equal(t, "Solo", ev.Context.Action)
	assert.NotNil(t, ev.Message().Metadata)
}

func TestLookups(t *testing.T) {
	ev, err := Decode([]byte(workItem), "h", nil)
	require.NoError(t, err)
	msg := ev.Message()

	_, err = msg.ContentAt(3)
	var contentErr *ExpectedContentError
	require.True(t, errors.As(err, &contentErr))
	assert.Equal(t, 3, contentErr.Index)
	assert.Equal(t, 1, contentErr.Size)

	d, err := msg.Domain("order")
	require.NoError(t, err)
	assert.Equal(t, "application/json", d.MediaType)
	_, err = msg.Domain("invoice")
	var domainErr *MissingDomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "invoice", domainErr.Name)

	e, err := msg.Enrichment("geo")
	require.NoError(t, err)
	assert.Equal(t, "US", e.Value)
	_, err = msg.Enrichment("weather")
	var enrichErr *MissingEnrichmentError
	assert.True(t, errors.As(err, &enrichErr))

	v, err := msg.MetadataValue("b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	_, err = msg.MetadataValue("zzz")
	var mdErr *MissingMetadataError
	assert.True(t, errors.As(err, &mdErr))
	assert.Equal(t, "fallback", msg.MetadataOr("zzz", "fallback"))

	origin, err := msg.SourceMetadataValue("origin")
	require.NoError(t, err)
	assert.Equal(t, "sftp", origin)
	_, err = msg.SourceMetadataValue("zzz")
	var srcErr *MissingSourceMetadataError
	assert.True(t, errors.As(err, &srcErr))
}

func TestContextSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	ac := ActionContext{Did: "did-9", Storage: content.NewMemoryStorage()}

	c, err := ac.SaveString(ctx, "payload", "out.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "did-9", c.Segments[0].Did)

	s, err := ac.LoadString(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "payload", s)
}

func TestSplitName(t *testing.T) {
	flow, action := SplitName("ingest.org.example.Upper")
	assert.Equal(t, "ingest", flow)
	assert.Equal(t, "org.example.Upper", action)
}

type upperParams struct {
	Suffix string `json:"suffix"`
	Repeat int    `json:"repeat"`
}

func TestDecodeParams(t *testing.T) {
	ev := Event{Params: []byte(`{"suffix":"!","repeat":2}`)}
	p, err := DecodeParams[upperParams](ev)
	require.NoError(t, err)
	assert.Equal(t, upperParams{Suffix: "!", Repeat: 2}, p)

	_, err = DecodeParams[upperParams](Event{Params: []byte(`{"repeat":"two"}`)})
	var paramErr *ParameterError
	assert.True(t, errors.As(err, &paramErr))

	empty, err := DecodeParams[upperParams](Event{})
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestValidateParams(t *testing.T) {
	schema, err := CompileSchema("upper", []byte(`{
		"type": "object",
		"properties": {"repeat": {"type": "integer", "minimum": 1}},
		"required": ["repeat"]
	}`))
	require.NoError(t, err)

	assert.NoError(t, ValidateParams(schema, Event{Params: []byte(`{"repeat":3}`)}))
	assert.NoError(t, ValidateParams(nil, Event{}))

	err = ValidateParams(schema, Event{Params: []byte(`{"repeat":0}`)})
	var paramErr *ParameterError
	assert.True(t, errors.As(err, &paramErr))

	err = ValidateParams(schema, Event{})
	assert.Error(t, err)

	_, err = CompileSchema("broken", []byte(`{"type": 12}`))
	assert.Error(t, err)
}

func TestDecodeEmptyContentKeepsEvent(t *testing.T) {
	raw := `{"actionContext":{"did":"d","name":"f.a"},"returnAddress":"core-b",` +
		`"deltaFileMessages":[{"contentList":[{"name":"x","segments":[]}]}]}`

	ev, err := Decode([]byte(raw), "h", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errorspkg.ErrEmptyContent)

	var emptyErr *EmptyContentError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, 0, emptyErr.Message)
	assert.Equal(t, 0, emptyErr.Index)
	assert.Equal(t, "x", emptyErr.Name)

	assert.Equal(t, "d", ev.Context.Did)
	assert.Equal(t, "core-b", ev.ReturnAddress)
	require.Len(t, ev.Messages, 1)
}
