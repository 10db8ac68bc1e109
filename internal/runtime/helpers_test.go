package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/actionflow/internal/runtime/config"
	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/actionflow/internal/runtime/logging"
	"github.com/drblury/actionflow/internal/runtime/metadata"
	"github.com/drblury/actionflow/internal/runtime/queue"
	"github.com/drblury/actionflow/internal/runtime/results"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

type putRecord struct {
	topic   string
	payload []byte
}

// testQueue is an in-memory queue.Client. Take serves items pushed with Push
// regardless of topic.
type testQueue struct {
	items chan []byte

	mu         sync.Mutex
	puts       []putRecord
	heartbeats []string
	recorded   []queue.ActionExecution
	removed    []queue.ActionExecution
	putErr     error
	failedPuts int
	takeErr    error
	closed     bool
}

func newTestQueue() *testQueue {
	return &testQueue{items: make(chan []byte, 16)}
}

func (q *testQueue) Push(raw []byte) { q.items <- raw }

func (q *testQueue) Take(ctx context.Context, _ string) ([]byte, error) {
	q.mu.Lock()
	err := q.takeErr
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw := <-q.items:
		return raw, nil
	}
}

func (q *testQueue) Put(_ context.Context, topic string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.putErr != nil {
		q.failedPuts++
		return q.putErr
	}
	q.puts = append(q.puts, putRecord{topic: topic, payload: payload})
	return nil
}

func (q *testQueue) Heartbeat(_ context.Context, topic string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heartbeats = append(q.heartbeats, topic)
	return nil
}

func (q *testQueue) RecordLongRunningTask(_ context.Context, exec queue.ActionExecution) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recorded = append(q.recorded, exec)
	return nil
}

func (q *testQueue) RemoveLongRunningTask(_ context.Context, exec queue.ActionExecution) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removed = append(q.removed, exec)
	return nil
}

func (q *testQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *testQueue) Puts() []putRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]putRecord(nil), q.puts...)
}

func (q *testQueue) FailedPuts() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failedPuts
}

func (q *testQueue) Heartbeats() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.heartbeats...)
}

func (q *testQueue) Recorded() []queue.ActionExecution {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.ActionExecution(nil), q.recorded...)
}

func (q *testQueue) Removed() []queue.ActionExecution {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.ActionExecution(nil), q.removed...)
}

func (q *testQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *testQueue) SetPutErr(err error) {
	q.mu.Lock()
	q.putErr = err
	q.mu.Unlock()
}

func newTestAction(name string, kind Kind, fn ActionFunc) Action {
	return NewAction(Descriptor{Name: name, Kind: kind, Description: name + " action"}, fn)
}

func filterAction(name string) Action {
	return newTestAction(name, KindTransform, func(context.Context, events.Event) (results.Result, error) {
		return results.NewFilter("filtered"), nil
	})
}

func newTestEvent(did string) events.Event {
	return events.Event{
		Messages: []events.DeltaFileMessage{{
			SourceFilename: "input.txt",
			Metadata:       metadata.Metadata{"k": "v"},
			SourceMetadata: metadata.Metadata{},
		}},
		Context: events.ActionContext{
			Did:      did,
			Name:     "flow.action",
			Flow:     "flow",
			Action:   "action",
			Hostname: "test-host",
			Storage:  content.NewMemoryStorage(),
		},
		Params: []byte(`{}`),
	}
}

// workItem renders the JSON the orchestrator puts on an action topic.
func workItem(t *testing.T, did, returnAddress string) []byte {
	t.Helper()
	raw, err := jsoncodec.Marshal(map[string]any{
		"deltaFileMessages": []map[string]any{{
			"sourceFilename": "input.txt",
			"metadata":       map[string]string{"k": "v"},
			"sourceMetadata": map[string]string{},
			"contentList":    []any{},
			"domains":        []any{},
			"enrichments":    []any{},
		}},
		"actionContext": map[string]string{
			"did":         did,
			"name":        "flow.action",
			"ingressFlow": "ingress",
			"egressFlow":  "egress",
			"systemName":  "test-system",
		},
		"actionParams":  map[string]any{},
		"queueName":     "org.example.Action",
		"returnAddress": returnAddress,
	})
	require.NoError(t, err)
	return raw
}

func decodeResponse(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, jsoncodec.Unmarshal(payload, &out))
	return out
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		Conf:            &configpkg.Config{},
		Logger:          newTestLogger(),
		queue:           newTestQueue(),
		storage:         content.NewMemoryStorage(),
		actions:         NewRegistry(),
		active:          NewActiveExecutions(),
		resourceTracker: newResourceTracker(),
		errorClassifier: defaultErrorClassifier,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", fmt.Sprintf(msg, args...))
}
