package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/api/websocket"
	"github.com/KevinKickass/OpenStudioCore/internal/config"
	"github.com/KevinKickass/OpenStudioCore/internal/interfaces"
	"github.com/KevinKickass/OpenStudioCore/internal/metrics"
	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/robot/robottest"
	"github.com/KevinKickass/OpenStudioCore/internal/studio"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testEnv struct {
	server *Server
	studio *studio.Studio
	robot1 *robottest.Actuator
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	target, err := types.NewTarget("Target 1",
		types.Shot{RobotID: "Robot #1", Position: types.NewPosition(10, 5)})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	require.NoError(t, err)

	robot1 := robottest.NewActuator("Robot #1")
	st, err := studio.New([]robot.Actuator{robot1}, []*types.Target{target},
		studio.WithLogger(logger),
		studio.WithMetrics(collector))
	require.NoError(t, err)
	t.Cleanup(st.Cleanup)

	hub := websocket.NewHub(logger, st)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})

	srv := NewServer(config.ServerConfig{HTTPPort: 0}, st, hub, reg, logger)
	return testEnv{server: srv, studio: st, robot1: robot1}
}

func (e testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func robotPath(name, suffix string) string {
	return "/api/v1/robots/" + url.PathEscape(name) + suffix
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestStudioAndTargets(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/studio", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap studio.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Empty(t, snap.SelectedTarget)
	require.Len(t, snap.Robots, 1)
	assert.Equal(t, "Robot #1", snap.Robots[0].Name)

	w = env.do(t, http.MethodGet, "/api/v1/targets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["count"])
}

func TestSelectTarget(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/studio/selected-target", `{"target":"Target 1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Target 1", body["selected_target"])
	assert.Equal(t, true, body["can_move_all"])

	w = env.do(t, http.MethodPut, "/api/v1/studio/selected-target", `{"target":"Nowhere"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, types.CodeNotFound, errorCode(t, w))

	w = env.do(t, http.MethodPut, "/api/v1/studio/selected-target", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/studio/selected-target", `{"target":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.studio.SelectedTarget())
}

func TestMoveAllAndStopAll(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/studio/move-all", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, types.CodeConflict, errorCode(t, w))

	require.NoError(t, env.studio.SelectTarget("Target 1"))

	w = env.do(t, http.MethodPost, "/api/v1/studio/move-all", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []any{"Robot #1"}, decode(t, w)["robots"])
	env.robot1.WaitStarted(t)

	w = env.do(t, http.MethodPost, "/api/v1/studio/stop-all", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool {
		return env.robot1.InFlight() == 0 && !env.studio.CanStopAll()
	}, 2*time.Second, 10*time.Millisecond)

	w = env.do(t, http.MethodPost, "/api/v1/studio/stop-all", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRobotEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/robots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["count"])

	w = env.do(t, http.MethodGet, robotPath("Robot #1", ""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Idle", decode(t, w)["status"])

	w = env.do(t, http.MethodGet, robotPath("Robot #9", ""), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, robotPath("Robot #1", "/move"), "")
	assert.Equal(t, http.StatusConflict, w.Code, "no target selected")

	require.NoError(t, env.studio.SelectTarget("Target 1"))
	w = env.do(t, http.MethodPost, robotPath("Robot #1", "/move"), "")
	require.Equal(t, http.StatusAccepted, w.Code)
	env.robot1.WaitStarted(t)

	w = env.do(t, http.MethodPost, robotPath("Robot #1", "/move"), "")
	assert.Equal(t, http.StatusConflict, w.Code, "already moving to the selection")

	w = env.do(t, http.MethodPost, robotPath("Robot #1", "/stop"), "")
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestMessagesAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.studio.SelectTarget("Target 1"))

	c, _ := env.studio.Robot("Robot #1")
	done, err := c.Move()
	require.NoError(t, err)
	env.robot1.WaitStarted(t)
	env.robot1.Complete(t, &robot.FaultError{Robot: "Robot #1", Reason: "tilt encoder lost"})
	<-done

	w := env.do(t, http.MethodGet, "/api/v1/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []studio.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "Robot #1: tilt encoder lost", body.Messages[0].Text)

	w = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `studio_moves_total{outcome="faulted",robot="Robot #1"} 1`)
	assert.Contains(t, w.Body.String(), `studio_robot_messages_total{robot="Robot #1"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodOptions, "/api/v1/studio", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

type fixedStatus interfaces.SystemStatus

func (f fixedStatus) GetCurrentStatus() interfaces.SystemStatus {
	return interfaces.SystemStatus(f)
}

func TestSystemStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/system/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, types.CodeUnavailable, errorCode(t, w))

	env.server.SetStatusProvider(fixedStatus{State: "RUNNING", RobotCount: 1})
	w = env.do(t, http.MethodGet, "/api/v1/system/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "RUNNING", body["state"])
	assert.Equal(t, 1.0, body["robot_count"])
}
