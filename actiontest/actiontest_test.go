package actiontest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/actionflow/internal/runtime"
	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/results"
)

type upperParams struct {
	Suffix string `json:"suffix"`
}

var upperAction = runtime.NewAction(runtime.Descriptor{
	Name: "org.example.Upper",
	Kind: runtime.KindTransform,
}, func(ctx context.Context, ev events.Event) (results.Result, error) {
	p, err := events.DecodeParams[upperParams](ev)
	if err != nil {
		return nil, err
	}
	msg := ev.Message()
	in, err := msg.FirstContent()
	if err != nil {
		return nil, err
	}
	data, err := content.Load(ctx, ev.Context.Storage, in)
	if err != nil {
		return nil, err
	}

	b := results.NewTransform(ev.Context)
	if err := b.SaveString(ctx, strings.ToUpper(string(data))+p.Suffix, in.Name, in.MediaType); err != nil {
		return nil, err
	}
	b.AddMetadata("source", msg.SourceFilename)
	b.AddMetric(results.NewMetric("bytes", int64(len(data))))
	return b.Result(), nil
})

func TestBuildDefaults(t *testing.T) {
	ev := NewEvent("flow.upper").Build(t)

	assert.Equal(t, DefaultDid, ev.Context.Did)
	assert.Equal(t, DefaultHostname, ev.Context.Hostname)
	assert.Equal(t, "flow", ev.Context.Flow)
	assert.Equal(t, "upper", ev.Context.Action)
	assert.JSONEq(t, `{}`, string(ev.Params))
	require.Len(t, ev.Messages, 1)
	assert.Equal(t, DefaultFilename, ev.Messages[0].SourceFilename)
	assert.Empty(t, ev.Messages[0].Content)
}

func TestBuildStoresContent(t *testing.T) {
	b := NewEvent("flow.upper").Did("did-7").ContentString("a.txt", "text/plain", "hello")
	ev := b.Build(t)

	c, err := ev.Message().FirstContent()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", c.Name)
	assert.Equal(t, "text/plain", c.MediaType)
	assert.EqualValues(t, 5, c.Size())
	assert.Equal(t, "did-7", c.Segments[0].Did)
	assert.Equal(t, "hello", LoadString(t, b.Storage(), c))
}

func TestBuildDoesNotShareMetadata(t *testing.T) {
	b := NewEvent("flow.upper").Metadata("k", "v")
	first := b.Build(t)
	b.Metadata("k", "changed")

	assert.Equal(t, "v", first.Message().Metadata["k"])
}

func TestRunTransform(t *testing.T) {
	b := NewEvent("flow.upper").
		SourceFilename("in.txt").
		ContentString("in.txt", "text/plain", "hello").
		Params(upperParams{Suffix: "!"})

	r, err := Run(upperAction, b.Build(t))
	require.NoError(t, err)

	tr := RequireResult[results.TransformResult](t, r)
	entries := tr.Entries()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Content, 1)
	assert.Equal(t, "HELLO!", LoadString(t, b.Storage(), entries[0].Content[0]))
	assert.Equal(t, "in.txt", entries[0].Metadata["source"])
	AssertMetric(t, r, "bytes", 5)
}

func TestRunConvertsMissingContent(t *testing.T) {
	r, err := Run(upperAction, NewEvent("flow.upper").Build(t))

	var missing *events.ExpectedContentError
	require.ErrorAs(t, err, &missing)
	AssertErrorCause(t, r, "Action attempted to look up element 1 (index 0) from content list of size 0")
}

func TestRunConvertsBadParams(t *testing.T) {
	ev := NewEvent("flow.upper").ContentString("in.txt", "text/plain", "x").RawParams(`{"suffix":1}`).Build(t)

	r, err := Run(upperAction, ev)
	var pe *events.ParameterError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, results.TypeError, r.Type())
}

func TestRunRecoversPanics(t *testing.T) {
	a := runtime.NewAction(runtime.Descriptor{Name: "org.example.Panics", Kind: runtime.KindValidate},
		func(context.Context, events.Event) (results.Result, error) {
			panic(errors.New("boom"))
		})

	r, err := Run(a, NewEvent("flow.panics").Build(t))
	var pe *runtime.PanicError
	require.ErrorAs(t, err, &pe)
	AssertErrorCause(t, r, "Action execution *errors.errorString exception")
}

func TestAssertFilter(t *testing.T) {
	a := runtime.NewAction(runtime.Descriptor{Name: "org.example.Drop", Kind: runtime.KindTransform},
		func(_ context.Context, ev events.Event) (results.Result, error) {
			if ev.Message().MetadataOr("drop", "false") == "true" {
				return results.NewFilter("dropped"), nil
			}
			return results.NewTransform(ev.Context).Result(), nil
		})

	r, err := Run(a, NewEvent("flow.drop").Metadata("drop", "true").Build(t))
	require.NoError(t, err)
	AssertFilter(t, r, "dropped")
}

func TestRequireResultReportsMismatch(t *testing.T) {
	rec := &recordingT{TB: t}
	func() {
		defer func() { _ = recover() }()
		RequireResult[results.FilterResult](rec, results.NewError("some cause", "ctx"))
	}()
	assert.True(t, rec.failed)
	assert.Contains(t, rec.msg, "some cause")
}

// recordingT captures a fatal failure instead of stopping the test.
type recordingT struct {
	testing.TB
	failed bool
	msg    string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...any) {
	r.failed = true
	r.msg = format
	for _, a := range args {
		if s, ok := a.(string); ok {
			r.msg += s
		}
	}
}

func (r *recordingT) FailNow() { panic("fail now") }
