package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	nethttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restartfu/grid-miner/internal/app"
	"github.com/restartfu/grid-miner/internal/domain"
	"github.com/restartfu/grid-miner/internal/ports"
)

// scriptedSupervisor feeds a fixed transcript to the consumer before Start
// returns, so responses are deterministic.
type scriptedSupervisor struct {
	mu         sync.Mutex
	transcript string
	startErr   error
	running    bool
	starts     int
}

func (s *scriptedSupervisor) Start(ctx context.Context, _ domain.LaunchSpec, consumer ports.OutputConsumer) (domain.WorkerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return domain.WorkerHandle{}, s.startErr
	}
	if err := consumer.Consume(ctx, strings.NewReader(s.transcript)); err != nil {
		return domain.WorkerHandle{}, err
	}
	s.starts++
	s.running = true
	return domain.WorkerHandle{ID: "h1", PID: 4242}, nil
}

func (s *scriptedSupervisor) Stop(domain.WorkerHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *scriptedSupervisor) IsRunning(domain.WorkerHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *scriptedSupervisor) Status() domain.WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return domain.WorkerStatus{LastError: "exit status 1"}
	}
	return domain.WorkerStatus{Running: true, PID: 4242}
}

func (s *scriptedSupervisor) Close() error { return s.Stop(domain.WorkerHandle{}) }

type staticSpecs struct{}

func (staticSpecs) ReadSpecs(context.Context) (domain.HostSpecs, error) {
	return domain.HostSpecs{Model: "Cortex-A53", PhysicalCores: 8, LogicalCores: 8, RAM: "3.7 GB"}, nil
}

func (staticSpecs) LogicalCores() int { return 8 }

type staticStore struct{}

func (staticStore) Get(context.Context, string) (string, bool, error) { return "install-1", true, nil }
func (staticStore) PutIfAbsent(context.Context, string, string) (string, error) {
	return "install-1", nil
}
func (staticStore) Close() error { return nil }

type testServer struct {
	echo       *echo.Echo
	supervisor *scriptedSupervisor
}

func newTestServer(t *testing.T, logTail int) testServer {
	t.Helper()
	supervisor := &scriptedSupervisor{
		transcript: "starting\naccepted (1/0)\nspeed 10s/60s/15m 12.0 n/a H/s max: 12.5 H/s\naccepted (2/0)\n",
	}
	controller := app.NewController(context.Background(), staticStore{}, supervisor, staticSpecs{}, zerolog.Nop(), app.Options{
		WorkDir: t.TempDir(),
		LogTail: logTail,
	})
	e := NewEcho(false, io.Discard)
	NewServer(controller, zerolog.Nop()).Register(e)
	return testServer{echo: e, supervisor: supervisor}
}

func (ts testServer) do(t *testing.T, method, target, body string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

const startBody = `{"username":"wallet","pool":"pool.example.com:3333","threads":2,"max_cpu":75,"append_worker_id":true}`

func TestGetHealth(t *testing.T) {
	ts := newTestServer(t, 0)
	var health healthResponse
	assert.Equal(t, nethttp.StatusOK, ts.do(t, nethttp.MethodGet, "/health", "", &health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Time.IsZero())
}

func TestStartStatusStop(t *testing.T) {
	ts := newTestServer(t, 0)

	var status statusResponse
	assert.Equal(t, nethttp.StatusOK, ts.do(t, nethttp.MethodGet, "/status", "", &status))
	assert.False(t, status.Running)
	assert.Equal(t, domain.SpeedUnknown, status.Speed)

	assert.Equal(t, nethttp.StatusAccepted, ts.do(t, nethttp.MethodPost, "/mining/start", startBody, &status))
	assert.True(t, status.Running)
	assert.Equal(t, 4242, status.PID)
	assert.Equal(t, 2, status.AcceptedShares)
	assert.Equal(t, "12.5", status.Speed)
	assert.True(t, strings.HasPrefix(status.Log, "starting\n"))

	assert.Equal(t, nethttp.StatusOK, ts.do(t, nethttp.MethodPost, "/mining/stop", "", &status))
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.AcceptedShares)
	assert.Equal(t, "12.5", status.Speed)
	require.NotNil(t, status.LastError)
	assert.Equal(t, "exit status 1", *status.LastError)
}

func TestStartErrors(t *testing.T) {
	ts := newTestServer(t, 0)
	var resp errorResponse

	assert.Equal(t, nethttp.StatusBadRequest, ts.do(t, nethttp.MethodPost, "/mining/start", `{"username":"wallet"`, &resp))
	assert.Equal(t, nethttp.StatusBadRequest,
		ts.do(t, nethttp.MethodPost, "/mining/start", `{"username":"wallet","pool":"p","threads":0,"max_cpu":50}`, &resp))
	assert.Contains(t, resp.Error, "threads")

	ts.supervisor.startErr = &domain.LaunchError{Op: "exec", Err: errors.New("permission denied")}
	assert.Equal(t, nethttp.StatusInternalServerError, ts.do(t, nethttp.MethodPost, "/mining/start", startBody, &resp))
	assert.Contains(t, resp.Error, "permission denied")
	assert.Zero(t, ts.supervisor.starts)
}

func TestStartErrorStatus(t *testing.T) {
	assert.Equal(t, nethttp.StatusBadRequest, startErrorStatus(domain.ErrInvalidConfig))
	assert.Equal(t, nethttp.StatusUnprocessableEntity, startErrorStatus(&domain.TemplateError{Op: "render"}))
	assert.Equal(t, nethttp.StatusInternalServerError, startErrorStatus(&domain.LaunchError{Op: "exec"}))
}

func TestGetLogs(t *testing.T) {
	ts := newTestServer(t, 3)
	require.Equal(t, nethttp.StatusAccepted, ts.do(t, nethttp.MethodPost, "/mining/start", startBody, nil))

	var logs logsResponse
	assert.Equal(t, nethttp.StatusOK, ts.do(t, nethttp.MethodGet, "/logs", "", &logs))
	assert.Equal(t, 3, logs.Count)
	assert.Equal(t, "accepted (2/0)", logs.Logs[2].Line)

	assert.Equal(t, nethttp.StatusOK, ts.do(t, nethttp.MethodGet, "/logs?n=1", "", &logs))
	require.Equal(t, 1, logs.Count)
	assert.Equal(t, "accepted (2/0)", logs.Logs[0].Line)

	assert.Equal(t, nethttp.StatusOK, ts.do(t, nethttp.MethodGet, "/logs?n=500", "", &logs))
	assert.Equal(t, 3, logs.Count)

	var resp errorResponse
	assert.Equal(t, nethttp.StatusBadRequest, ts.do(t, nethttp.MethodGet, "/logs?n=0", "", &resp))
	assert.Equal(t, nethttp.StatusBadRequest, ts.do(t, nethttp.MethodGet, "/logs?n=abc", "", &resp))
	assert.Equal(t, "invalid n", resp.Error)
}

func TestGetSpecsAndIdentity(t *testing.T) {
	ts := newTestServer(t, 0)

	var specs specsResponse
	assert.Equal(t, nethttp.StatusOK, ts.do(t, nethttp.MethodGet, "/specs", "", &specs))
	assert.Equal(t, "Cortex-A53", specs.Model)
	assert.Equal(t, 8, specs.AvailableParallelism)
	assert.Equal(t, 4, specs.SuggestedThreads)

	var identity identityResponse
	assert.Equal(t, nethttp.StatusOK, ts.do(t, nethttp.MethodGet, "/identity", "", &identity))
	assert.Equal(t, "install-1", identity.WorkerID)
	assert.True(t, identity.Persisted)
}
