package runtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/actionflow/internal/runtime/config"
	"github.com/drblury/actionflow/internal/runtime/queue"
)

func TestHandleGetActionsReturnsJSON(t *testing.T) {
	svc := newTestService(t)
	svc.Conf = &configpkg.Config{WebUICORSAllowedOrigins: []string{"*"}}
	require.NoError(t, svc.RegisterAction(filterAction("org.example.Filter")))
	svc.statsFor("org.example.Filter").onExecutionFinish(time.Millisecond, nil, nil, nil)

	started := time.Now().Add(-2 * time.Second)
	svc.active.Add(queue.ActionExecution{
		ClassName: "org.example.Filter",
		Action:    "flow.filter",
		Did:       "did-1",
		StartTime: started,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/actions", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	rec := httptest.NewRecorder()

	svc.handleGetActions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var payload struct {
		Actions []struct {
			Name  string         `json:"name"`
			Kind  string         `json:"kind"`
			Topic string         `json:"topic"`
			Stats map[string]any `json:"stats"`
		} `json:"actions"`
		Running []runningExecution `json:"running"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	require.Len(t, payload.Actions, 1)
	assert.Equal(t, "org.example.Filter", payload.Actions[0].Name)
	assert.Equal(t, "TRANSFORM", payload.Actions[0].Kind)
	assert.Equal(t, "org.example.Filter", payload.Actions[0].Topic)
	assert.EqualValues(t, 1, payload.Actions[0].Stats["executions"])

	require.Len(t, payload.Running, 1)
	assert.Equal(t, "did-1", payload.Running[0].Did)
	assert.Equal(t, "flow.filter", payload.Running[0].Action)
	assert.GreaterOrEqual(t, payload.Running[0].ElapsedMs, int64(2000))
}

func TestHandleGetActionsEmpty(t *testing.T) {
	svc := newTestService(t)

	rec := httptest.NewRecorder()
	svc.handleGetActions(rec, httptest.NewRequest(http.MethodGet, "/api/actions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"actions":[],"running":[]}`, rec.Body.String())
}

func TestHandleGetActionsPreflight(t *testing.T) {
	svc := newTestService(t)
	svc.Conf = &configpkg.Config{WebUICORSAllowedOrigins: []string{"https://ui.example.com"}}

	req := httptest.NewRequest(http.MethodOptions, "/api/actions", nil)
	req.Header.Set("Origin", "https://UI.example.com")
	rec := httptest.NewRecorder()
	svc.handleGetActions(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://UI.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestGetAllowedCORSOrigin(t *testing.T) {
	svc := &Service{}
	assert.Empty(t, svc.getAllowedCORSOrigin("https://a.example.com"))

	svc.Conf = &configpkg.Config{WebUICORSAllowedOrigins: []string{"https://a.example.com"}}
	assert.Equal(t, "https://a.example.com", svc.getAllowedCORSOrigin("https://a.example.com"))
	assert.Empty(t, svc.getAllowedCORSOrigin("https://b.example.com"))
}

func TestStartWebUIServerRegistersEndpoint(t *testing.T) {
	svc := newTestService(t)
	svc.StartWebUIServer()
	assert.Empty(t, svc.httpServers, "web UI disabled by default")

	svc.Conf = &configpkg.Config{WebUIEnabled: true}
	svc.StartWebUIServer()
	mux, ok := svc.httpServers[configpkg.DefaultWebUIPort]
	require.True(t, ok)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/actions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
