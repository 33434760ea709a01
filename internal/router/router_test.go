package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/deppfellow/agent-chat-backend/internal/config"
	"github.com/deppfellow/agent-chat-backend/internal/handler"
	"github.com/deppfellow/agent-chat-backend/internal/model"
	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/deppfellow/agent-chat-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	router *echo.Echo
	server *server.Server
	cfg    *config.Config
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *testApp {
	t.Helper()

	cfg := config.Default()
	cfg.Stream.TokenDelay = 0
	if mutate != nil {
		mutate(cfg)
	}

	logger := zerolog.Nop()
	s, err := server.New(cfg, &logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if s.Job != nil {
			_ = s.Job.Client.Close()
		}
		if s.Redis != nil {
			_ = s.Redis.Close()
		}
	})

	repos, err := repository.NewRepositories(s)
	require.NoError(t, err)
	services, err := service.NewServices(s, repos, service.NewAgentRegistry())
	require.NoError(t, err)

	return &testApp{
		router: NewRouter(s, handler.NewHandlers(s, repos, services)),
		server: s,
		cfg:    cfg,
	}
}

func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testApp) createThread(t *testing.T) model.Thread {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/threads", `{"metadata": {"title": "test"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[model.Thread](t, rec)
}

func TestSystemRoutes(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(t, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/info", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name": "echo-api", "version": "1.0.0"}`, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/static/openapi.json")

	rec = app.do(t, http.MethodGet, "/static/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	assert.Contains(t, doc["paths"], "/threads/{thread_id}/runs/stream")
}

func TestStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.Redis = &config.RedisConfig{Address: mr.Addr()}
	})

	rec := app.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["storage"].(map[string]any)["status"])
	assert.Equal(t, "memory", checks["storage"].(map[string]any)["driver"])
	assert.Equal(t, "healthy", checks["redis"].(map[string]any)["status"])

	mr.Close()

	rec = app.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "unhealthy", body["checks"].(map[string]any)["redis"].(map[string]any)["status"])
}

func TestAssistantRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	assistantID := app.cfg.Assistant.ID

	rec := app.do(t, http.MethodPost, "/assistants/search", `{"limit": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(handler.HeaderOffset))
	list := decode[[]model.Assistant](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, assistantID, list[0].AssistantID)

	for _, id := range []string{assistantID, app.cfg.Assistant.GraphID} {
		rec = app.do(t, http.MethodGet, "/assistants/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, assistantID, decode[model.Assistant](t, rec).AssistantID)
	}

	rec = app.do(t, http.MethodGet, "/assistants/"+assistantID+"/schemas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	schemas := decode[map[string]any](t, rec)
	assert.Contains(t, schemas, "input_schema")
	assert.Contains(t, schemas, "output_schema")

	rec = app.do(t, http.MethodGet, "/assistants/nope/schemas", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.MsgAssistantNotFound, decode[map[string]any](t, rec)["message"])
}

func TestThreadRoutes(t *testing.T) {
	app := newTestApp(t, nil)

	thread := app.createThread(t)
	assert.Equal(t, model.ThreadIdle, thread.Status)
	assert.Equal(t, "test", thread.Metadata["title"])
	path := "/threads/" + thread.ThreadID

	rec := app.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPatch, path, `{"metadata": {"pinned": true}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	patched := decode[model.Thread](t, rec)
	assert.Equal(t, "test", patched.Metadata["title"])
	assert.Equal(t, true, patched.Metadata["pinned"])
	assert.False(t, patched.UpdatedAt.Before(thread.UpdatedAt))

	rec = app.do(t, http.MethodGet, path+"/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[model.Checkpoint](t, rec)
	assert.Equal(t, -1, state.Metadata.Step)

	rec = app.do(t, http.MethodPost, path+"/history", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Checkpoint](t, rec), 1)

	rec = app.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.MsgThreadNotFound, decode[map[string]any](t, rec)["message"])

	rec = app.do(t, http.MethodPost, path+"/history/search", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThreadSearch_Pagination(t *testing.T) {
	app := newTestApp(t, nil)
	for range 3 {
		app.createThread(t)
	}

	rec := app.do(t, http.MethodPost, "/threads/search", `{"offset": 0, "limit": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Thread](t, rec), 2)
	assert.Equal(t, "0", rec.Header().Get(handler.HeaderOffset))
	assert.Equal(t, "2", rec.Header().Get(handler.HeaderNextOffset))

	rec = app.do(t, http.MethodPost, "/threads/search", `{"offset": 2, "limit": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Thread](t, rec), 1)
	assert.Empty(t, rec.Header().Get(handler.HeaderNextOffset))

	rec = app.do(t, http.MethodPost, "/threads/search", `{"limit": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Thread](t, rec), 3)

	rec = app.do(t, http.MethodPost, "/threads/search", `{"offset": -1, "limit": 5000}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Len(t, body["errors"], 2)
}

func TestRunRoutes_NonStreaming(t *testing.T) {
	app := newTestApp(t, nil)
	thread := app.createThread(t)
	path := "/threads/" + thread.ThreadID

	rec := app.do(t, http.MethodPost, path+"/runs", `{"assistant_id": "echo", "input": {"messages": [{"type": "human", "content": "hello world"}]}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decode[model.Run](t, rec)
	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, path+"/runs/"+run.RunID, rec.Header().Get(handler.HeaderContentLocation))

	result := run.Kwargs["result"].(map[string]any)
	assert.Equal(t, "hello world", result["output"])

	rec = app.do(t, http.MethodGet, path+"/runs/"+run.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, run.RunID, decode[model.Run](t, rec).RunID)

	rec = app.do(t, http.MethodGet, path+"/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Run](t, rec), 1)

	rec = app.do(t, http.MethodGet, path+"/runs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.MsgRunNotFound, decode[map[string]any](t, rec)["message"])

	rec = app.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.Thread](t, rec)
	require.Len(t, updated.Values.Messages, 2)
	assert.Equal(t, "hello world", updated.Values.Messages[0].Content)
	assert.Equal(t, "hello world", updated.Values.Messages[1].Content)

	rec = app.do(t, http.MethodPost, path+"/history", `{"limit": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]model.Checkpoint](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, run.RunID+":step_1", history[0].Checkpoint.CheckpointID)
	assert.Equal(t, "2", rec.Header().Get(handler.HeaderNextOffset))
}

type frame struct {
	id    string
	event string
	data  string
}

func parseFrames(t *testing.T, body string) []frame {
	t.Helper()
	var frames []frame
	for _, block := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		if strings.HasPrefix(block, ":") {
			continue
		}
		var f frame
		var data []string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "id: "):
				f.id = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = append(data, strings.TrimPrefix(line, "data: "))
			}
		}
		f.data = strings.Join(data, "\n")
		frames = append(frames, f)
	}
	return frames
}

func TestRunRoutes_Stream(t *testing.T) {
	app := newTestApp(t, nil)
	thread := app.createThread(t)
	path := "/threads/" + thread.ThreadID

	rec := app.do(t, http.MethodPost, path+"/runs/stream", `{"input": "hi there"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), ":\n\n"))

	frames := parseFrames(t, rec.Body.String())
	events := make([]string, 0, len(frames))
	for i, f := range frames {
		assert.Equal(t, strconv.Itoa(i+1), f.id)
		events = append(events, f.event)
	}
	assert.Equal(t, []string{
		"metadata",
		"data", "data", "data",
		"data", "data",
		"data", "data",
		"stream_end",
	}, events)

	var chunks []string
	for _, f := range frames[4:6] {
		var patch []map[string]any
		require.NoError(t, json.Unmarshal([]byte(f.data), &patch))
		assert.Equal(t, "/messages/1/content/-", patch[0]["path"])
		chunks = append(chunks, patch[0]["value"].(string))
	}
	assert.Equal(t, []string{"hi ", "there"}, chunks)

	var end map[string]any
	require.NoError(t, json.Unmarshal([]byte(frames[len(frames)-1].data), &end))
	runID := end["run_id"].(string)
	assert.Equal(t, path+"/runs/"+runID, rec.Header().Get(handler.HeaderContentLocation))

	rec = app.do(t, http.MethodGet, path+"/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RunSuccess, decode[model.Run](t, rec).Status)
}

func TestRunRoutes_StreamErrorsBeforeStreaming(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(t, http.MethodPost, "/threads/missing/runs/stream", `{"input": "hi"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.MsgThreadNotFound, decode[map[string]any](t, rec)["message"])

	thread := app.createThread(t)
	rec = app.do(t, http.MethodPost, "/threads/"+thread.ThreadID+"/runs/stream", `{"assistant_id": "someone-else", "input": "hi"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgUnknownAssistant, decode[map[string]any](t, rec)["message"])
}

func TestAuthEnabled_ProtectsAPIRoutesOnly(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.Auth.SecretKey = "sk_test_dummy"
	})

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodPost, "/threads", `{}`).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/ok", "").Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/status", "").Code)
}
