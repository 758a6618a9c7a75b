package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/platformer-rl/platformer"
	"github.com/zeu5/platformer-rl/sim"
	"github.com/zeu5/platformer-rl/types"
)

func newTestServer() (*ControlServer, *sim.Controller) {
	control := sim.NewController(sim.Settings{AIControl: true, Training: true, Speedup: 1})
	return NewControlServer("localhost:0", control, slog.Default()), control
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	s, control := newTestServer()
	control.Publish(sim.Status{Episode: 7, Layout: 1, Theme: "Forest"})

	w := do(t, s.Handler(), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := sim.Status{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 7, status.Episode)
	assert.Equal(t, "Forest", status.Theme)
}

func TestControl(t *testing.T) {
	s, control := newTestServer()

	w := do(t, s.Handler(), http.MethodPost, "/control", `{"ai_control": false, "speedup": 2.5}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sim.Settings{AIControl: false, Training: true, Speedup: 2.5}, control.Settings())

	w = do(t, s.Handler(), http.MethodPost, "/control", `{"speedup": -1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 2.5, control.Settings().Speedup)

	w = do(t, s.Handler(), http.MethodPost, "/control", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInput(t *testing.T) {
	s, control := newTestServer()
	w := do(t, s.Handler(), http.MethodPost, "/input", `{"right": true, "jump": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, platformer.InputState{Right: true, Jump: true}, control.Input())
}

func TestCommand(t *testing.T) {
	s, control := newTestServer()
	w := do(t, s.Handler(), http.MethodPost, "/command/next-layout", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = do(t, s.Handler(), http.MethodPost, "/command/save", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = do(t, s.Handler(), http.MethodPost, "/command/explode", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []sim.Command{sim.CommandNextLayout, sim.CommandSave}, control.Drain())
}

func TestEpisodeStream(t *testing.T) {
	s, control := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/episodes/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// the subscription is registered asynchronously
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				control.OnEpisode(types.EpisodeRecord{Episode: 4, Reason: types.ReasonExit})
			}
		}
	}()

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	rec := types.EpisodeRecord{}
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, 4, rec.Episode)
	assert.Equal(t, types.ReasonExit, rec.Reason)
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestRunStopsWithContext(t *testing.T) {
	s, _ := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
