package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restartfu/grid-miner/internal/domain"
)

type stubSource struct {
	mu      sync.Mutex
	metrics domain.Metrics
	status  domain.WorkerStatus
}

func (s *stubSource) Snapshot() domain.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *stubSource) Status() domain.WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *stubSource) set(shares int, speed string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = domain.Metrics{AcceptedShares: shares, Speed: speed}
	s.status = domain.WorkerStatus{Running: running}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestTickLogsOnlyChanges(t *testing.T) {
	source := &stubSource{}
	source.set(0, domain.SpeedUnknown, false)
	out := &syncBuffer{}
	r := New(source, zerolog.New(out), time.Second, "Intel(R) Core(TM) i7 8-Core Processor")

	assert.True(t, r.Tick())
	assert.False(t, r.Tick())

	source.set(0, domain.SpeedUnknown, true)
	assert.True(t, r.Tick())
	source.set(1, "412.5", true)
	assert.True(t, r.Tick())
	source.set(1, "398.0", true)
	assert.True(t, r.Tick())
	assert.False(t, r.Tick())

	lines := out.lines(t)
	require.Len(t, lines, 4)
	assert.Equal(t, "miner idle", lines[0]["message"])
	assert.Equal(t, "miner running", lines[1]["message"])
	assert.Equal(t, "412.50 H/s", lines[2]["message"])
	assert.Equal(t, "398.00 H/s", lines[3]["message"])
	assert.Equal(t, 412.5, lines[3]["best_speed"])
	assert.Equal(t, "Intel(R) Core(TM) i7", lines[3]["title"])
}

func TestTickNonNumericSpeedLoggedVerbatim(t *testing.T) {
	source := &stubSource{}
	source.set(1, "412.5", true)
	out := &syncBuffer{}
	r := New(source, zerolog.New(out), time.Second, "")

	require.True(t, r.Tick())
	source.set(1, "n/a", true)
	require.True(t, r.Tick())

	lines := out.lines(t)
	require.Len(t, lines, 2)
	assert.Equal(t, "412.50 H/s", lines[0]["message"])
	assert.Equal(t, "n/a H/s", lines[1]["message"])
	assert.Equal(t, "n/a", lines[1]["speed"])
	assert.Equal(t, 412.5, lines[1]["best_speed"])
}

func TestDescription(t *testing.T) {
	tests := []struct {
		running bool
		speed   string
		want    string
	}{
		{running: false, speed: "10.0", want: "miner idle"},
		{running: true, speed: domain.SpeedUnknown, want: "miner running"},
		{running: true, speed: "55.3", want: "55.30 H/s"},
		{running: true, speed: "n/a", want: "n/a H/s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, description(tt.running, tt.speed), tt.speed)
	}
}

func TestRunLogsDownOnCancel(t *testing.T) {
	source := &stubSource{}
	source.set(3, "10.0", true)
	out := &syncBuffer{}
	r := New(source, zerolog.New(out), 10*time.Millisecond, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return len(out.lines(t)) > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}

	lines := out.lines(t)
	last := lines[len(lines)-1]
	assert.Equal(t, "miner down", last["message"])
	assert.Equal(t, "warn", last["level"])
	assert.Equal(t, "miner", last["title"])
	assert.EqualValues(t, 3, last["accepted_shares"])
}

func TestFormatUptime(t *testing.T) {
	tests := map[time.Duration]string{
		30 * time.Second:             "less than a minute",
		5 * time.Minute:              "5 minutes",
		2 * time.Hour:                "2 hours",
		2*time.Hour + 15*time.Minute: "2 hours 15 minutes",
		26*time.Hour + time.Minute:   "26 hours 1 minutes",
	}
	for d, want := range tests {
		assert.Equal(t, want, formatUptime(d), d.String())
	}
}

func TestStripCoreInfo(t *testing.T) {
	assert.Equal(t, "AMD Ryzen 7 5800X", stripCoreInfo("AMD Ryzen 7 5800X 8-Core Processor"))
	assert.Equal(t, "Cortex-A72", stripCoreInfo("  Cortex-A72 "))
}
