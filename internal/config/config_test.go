package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "xmrig", cfg.Xmrig.Executable)
	assert.Equal(t, "config.json", cfg.Xmrig.ConfigName)
	assert.Equal(t, 5*time.Second, cfg.Xmrig.StopTimeout)
	assert.Equal(t, 250, cfg.Xmrig.LogTail)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10*time.Second, cfg.Report.Interval)
	assert.False(t, cfg.Mining.Autostart)
	assert.Equal(t, filepath.Join(cfg.DataDir, "xmrig"), cfg.WorkDir)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "grid.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
addr: ":9000"
work_dir: /opt/xmrig
store:
  driver: sqlite
xmrig:
  stop_timeout: 2s
  args: ["--no-color"]
mining:
  pool: pool.example.com:3333
  username: wallet
  threads: 3
  max_cpu: 60
`), 0o600))

	t.Setenv("GRID_ADDR", ":9100")
	t.Setenv("GRID_MINING_THREADS", "6")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example.com/1")

	cfg, err := Load([]string{"--config", file, "--addr", ":9200", "--autostart"})
	require.NoError(t, err)

	assert.Equal(t, ":9200", cfg.Addr, "flag wins over env and file")
	assert.Equal(t, "/opt/xmrig", cfg.WorkDir)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Xmrig.StopTimeout)
	assert.Equal(t, []string{"--no-color"}, cfg.Xmrig.Args)
	assert.Equal(t, 6, cfg.Mining.Threads, "env wins over file")
	assert.Equal(t, 60, cfg.Mining.MaxCPU)
	assert.True(t, cfg.Mining.Autostart)
	assert.Equal(t, "https://key@sentry.example.com/1", cfg.Sentry.DSN)

	session := cfg.Mining.Session()
	assert.Equal(t, "pool.example.com:3333", session.Pool)
	assert.True(t, session.AppendWorkerID)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{
			name: "unknown flag",
			args: []string{"--bogus"},
			want: "unknown flag",
		},
		{
			name: "store driver",
			args: []string{"--store-driver", "redis"},
			want: "unsupported store driver: redis",
		},
		{
			name: "stop timeout",
			env:  map[string]string{"GRID_XMRIG_STOP_TIMEOUT": "0s"},
			want: "xmrig.stop_timeout must be positive",
		},
		{
			name: "report interval",
			env:  map[string]string{"GRID_REPORT_INTERVAL": "-1s"},
			want: "report.interval must be positive",
		},
		{
			name: "autostart without pool",
			args: []string{"--autostart"},
			env:  map[string]string{"GRID_MINING_USERNAME": "wallet"},
			want: "pool is required",
		},
		{
			name: "missing config file",
			args: []string{"--config", "/nonexistent/grid.yaml"},
			want: "read config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
