package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/skyagent/internal/actor"
	"github.com/flitsinc/skyagent/internal/eventbus"
	"github.com/flitsinc/skyagent/internal/schema"
	"github.com/flitsinc/skyagent/internal/state"
	"github.com/flitsinc/skyagent/internal/testutil"
)

type fakeAgent struct {
	snap     actor.Snapshot
	err      error
	triggers []string
}

func (a *fakeAgent) Snapshot() actor.Snapshot { return a.snap }

func (a *fakeAgent) Trigger(_ context.Context, text string) error {
	if a.err != nil {
		return a.err
	}
	a.triggers = append(a.triggers, text)
	return nil
}

type staticPrompt string

func (p staticPrompt) Build(context.Context) (string, error) { return string(p), nil }

func newTestServer(t *testing.T) (*Server, *http.Client, *state.Store) {
	t.Helper()
	store := testutil.OpenTestStore(t)
	server := &Server{
		Agent:     &fakeAgent{snap: actor.Snapshot{Connection: "connected", EventsReceived: 12, EventsHandled: 2}},
		Bus:       eventbus.NewBus(store.DB()),
		Store:     store,
		Prompt:    staticPrompt("identity"),
		StartedAt: time.Now().Add(-time.Minute),
		Info:      DiagnosticsInfo{Self: "did:plc:self"},
	}
	return server, testutil.NewInProcessClient(server.Handler()), store
}

func TestDiagnostics(t *testing.T) {
	_, client, _ := newTestServer(t)

	resp := doJSON(t, client, http.MethodGet, "/api/diagnostics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var diag DiagnosticsResponse
	decodeJSONResponse(t, resp, &diag)

	require.NotNil(t, diag.Actor)
	assert.Equal(t, "connected", diag.Actor.Connection)
	assert.EqualValues(t, 12, diag.Actor.EventsReceived)
	assert.Equal(t, "did:plc:self", diag.Info.Self)
	assert.GreaterOrEqual(t, diag.UptimeSeconds, int64(59))
}

func TestTrigger(t *testing.T) {
	server, client, _ := newTestServer(t)
	agent := server.Agent.(*fakeAgent)

	resp := doJSON(t, client, http.MethodPost, "/api/trigger", map[string]any{"text": "post something"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, readBody(t, resp))
	assert.Equal(t, []string{"post something"}, agent.triggers)

	resp = doJSON(t, client, http.MethodPost, "/api/trigger", map[string]any{"text": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, readBody(t, resp))

	resp = doJSON(t, client, http.MethodPost, "/api/trigger", map[string]any{"txt": "typo"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, readBody(t, resp))

	agent.err = actor.ErrBusy
	resp = doJSON(t, client, http.MethodPost, "/api/trigger", map[string]any{"text": "again"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, readBody(t, resp))

	resp = doJSON(t, client, http.MethodGet, "/api/trigger", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, readBody(t, resp))
}

func TestNotesThreadsActions(t *testing.T) {
	_, client, store := newTestServer(t)
	ctx := context.Background()

	resp := doJSON(t, client, http.MethodPost, "/api/notes", map[string]any{"body": "no politics"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, readBody(t, resp))
	resp = doJSON(t, client, http.MethodPost, "/api/notes", map[string]any{"kind": "mood", "body": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, readBody(t, resp))

	resp = doJSON(t, client, http.MethodGet, "/api/notes", nil)
	var notes []state.Note
	decodeJSONResponse(t, resp, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, "no politics", notes[0].Body)

	require.NoError(t, store.UpsertThread(ctx, "at://did:plc:a/app.bsky.feed.post/1", time.Now()))
	resp = doJSON(t, client, http.MethodGet, "/api/threads", nil)
	var threads []state.Thread
	decodeJSONResponse(t, resp, &threads)
	require.Len(t, threads, 1)

	resp = doJSON(t, client, http.MethodGet, "/api/actions", nil)
	var actions []state.Action
	decodeJSONResponse(t, resp, &actions)
	assert.Empty(t, actions)
	assert.NotNil(t, actions)

	_, err := store.CreateAction(ctx, "run-1", "post", "hello", "recorded", nil)
	require.NoError(t, err)
	resp = doJSON(t, client, http.MethodGet, "/api/actions?run_id=run-1", nil)
	decodeJSONResponse(t, resp, &actions)
	require.Len(t, actions, 1)
	assert.Equal(t, "hello", actions[0].Content)
}

func TestStreamsAndPrompt(t *testing.T) {
	server, client, _ := newTestServer(t)
	_, err := server.Bus.Push(context.Background(), eventbus.EventInput{Stream: schema.StreamSteps, RunID: "run-1", Body: "step 1"})
	require.NoError(t, err)

	resp := doJSON(t, client, http.MethodGet, "/api/streams/steps?run_id=run-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []eventbus.Event
	decodeJSONResponse(t, resp, &events)
	require.Len(t, events, 1)

	resp = doJSON(t, client, http.MethodGet, "/api/streams/", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, readBody(t, resp))

	resp = doJSON(t, client, http.MethodGet, "/api/prompt", nil)
	var body map[string]string
	decodeJSONResponse(t, resp, &body)
	assert.Equal(t, "identity", body["system_prompt"])
}

func TestHealth(t *testing.T) {
	_, client, _ := newTestServer(t)
	resp := doJSON(t, client, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, readBody(t, resp))
}

func doJSON(t *testing.T, client *http.Client, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, "http://in-process"+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSONResponse(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return string(data)
}
