package actionflow

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterActionExportPropagatesErrors(t *testing.T) {
	err := RegisterAction(nil, NewAction(Descriptor{Name: "org.example.A", Kind: KindTransform}, nil))
	assert.ErrorIs(t, err, ErrServiceRequired)
}

func TestExecutorExportConvertsFaults(t *testing.T) {
	a := NewAction(Descriptor{Name: "org.example.Lookup", Kind: KindTransform}, func(_ context.Context, ev Event) (Result, error) {
		_, err := ev.Message().Domain("json")
		return nil, err
	})
	ev := Event{
		Messages: []DeltaFileMessage{{Metadata: Metadata{}}},
		Context:  ActionContext{Did: "did-1", Storage: NewMemoryStorage()},
	}

	r, err := NewExecutor(ExecutorOptions{}).Execute(context.Background(), a, ev)
	var missing *MissingDomainError
	require.ErrorAs(t, err, &missing)

	errResult, ok := r.(ErrorResult)
	require.True(t, ok)
	assert.Equal(t, "Action attempted to access domain json, which does not exist", errResult.Cause())
	assert.Equal(t, errResult.Cause(), FaultCause(err))
}

func TestKindExports(t *testing.T) {
	assert.True(t, KindEgress.Allows(NewEgress("s3://bucket", 1).Type()))
	assert.False(t, KindEgress.Allows(NewFilter("f").Type()))
}

func TestLoggerExports(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONServiceLogger(&buf, slog.LevelInfo)
	logger.Info("boot", LogFields{"component": "test"})
	assert.Contains(t, buf.String(), `"component":"test"`)

	assert.NotPanics(t, func() {
		NewNopServiceLogger().Info("boot", nil)
	})
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	_, err := Marshal(payload)
	require.NoError(t, err)
	_, err = MarshalIndent(payload, "", "  ")
	require.NoError(t, err)
	require.NoError(t, Unmarshal([]byte(`{"hello":"world"}`), &payload))
}

func TestDecodeParamsExport(t *testing.T) {
	type params struct {
		Prefix string `json:"prefix"`
	}
	p, err := DecodeParams[params](Event{Params: []byte(`{"prefix":"x-"}`)})
	require.NoError(t, err)
	assert.Equal(t, "x-", p.Prefix)
}

func TestMetadataExport(t *testing.T) {
	md := NewMetadata("key", "value")
	assert.Equal(t, "value", md["key"])
}

func TestResponseTopicExport(t *testing.T) {
	assert.Equal(t, "dgs", ResponseTopicFor(""))
	assert.Equal(t, "dgs-core", ResponseTopicFor("core"))
}
