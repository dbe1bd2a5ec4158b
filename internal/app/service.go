package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/restartfu/grid-miner/internal/domain"
	"github.com/restartfu/grid-miner/internal/fsutil"
	"github.com/restartfu/grid-miner/internal/identity"
	"github.com/restartfu/grid-miner/internal/observability"
	"github.com/restartfu/grid-miner/internal/ports"
	"github.com/restartfu/grid-miner/internal/xmrig"
)

const (
	defaultExecutable = "xmrig"
	defaultConfigName = "config.json"
)

type Options struct {
	// WorkDir is the private directory the worker runs in. It holds the
	// binary, its shared libraries and the rendered config.
	WorkDir string
	// Executable is a file name inside WorkDir or an absolute path.
	Executable   string
	Args         []string
	ConfigName   string
	TemplatePath string
	ExtraEnv     []string
	LogTail      int
	// Output receives a copy of every worker output line when set.
	Output io.Writer
}

// Controller is the entry point for callers: it renders the worker config,
// launches the worker and serves metric snapshots.
type Controller struct {
	specsReader ports.SpecsReader
	supervisor  ports.WorkerSupervisor
	logger      zerolog.Logger
	options     Options
	workerID    string
	persisted   bool

	mu     sync.Mutex
	handle domain.WorkerHandle
	parser atomic.Pointer[xmrig.Parser]
}

// NewController resolves the worker identity from store. A failing store is
// not fatal: the controller continues with an identity that only lives for
// this process.
func NewController(ctx context.Context, store ports.KeyValueStore, supervisor ports.WorkerSupervisor, specsReader ports.SpecsReader, logger zerolog.Logger, options Options) *Controller {
	logger = logger.With().Str("component", "controller").Logger()
	options = normalizeOptions(options)

	persisted := true
	workerID, err := identity.GetOrCreate(ctx, store)
	if err != nil {
		persisted = false
		workerID = identity.Ephemeral()
		logger.Warn().Err(err).Str("worker_id", workerID).Msg("using session scoped worker id")
		observability.CaptureError(err, map[string]string{
			"component": "identity",
			"operation": "get_or_create",
		}, nil)
	}

	c := &Controller{
		specsReader: specsReader,
		supervisor:  supervisor,
		logger:      logger,
		options:     options,
		workerID:    workerID,
		persisted:   persisted,
	}
	c.parser.Store(xmrig.NewParser(options.LogTail, nil))
	return c
}

func normalizeOptions(options Options) Options {
	if options.Executable == "" {
		options.Executable = defaultExecutable
	}
	if options.ConfigName == "" {
		options.ConfigName = defaultConfigName
	}
	if options.LogTail <= 0 {
		options.LogTail = xmrig.DefaultTailSize
	}
	return options
}

func (c *Controller) Health() domain.Health {
	return domain.Health{
		Status: "ok",
		Time:   time.Now().UTC(),
	}
}

// Identity returns the worker id and whether it is persisted.
func (c *Controller) Identity() (string, bool) {
	return c.workerID, c.persisted
}

// NewConfig builds and validates a config for Start.
func (c *Controller) NewConfig(username, pool string, threads, maxCPU int, appendWorkerID bool) (domain.MiningConfig, error) {
	cfg := domain.MiningConfig{
		Pool:           pool,
		Username:       username,
		Threads:        threads,
		MaxCPU:         maxCPU,
		AppendWorkerID: appendWorkerID,
	}
	if err := cfg.Validate(); err != nil {
		return domain.MiningConfig{}, err
	}
	return cfg, nil
}

// Start replaces any running worker with a new one configured from cfg.
// The running worker is stopped first; if anything after that fails no
// worker runs and the metrics of the previous session stay visible.
func (c *Controller) Start(ctx context.Context, cfg domain.MiningConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(); err != nil {
		return err
	}

	template, err := xmrig.LoadTemplate(c.options.TemplatePath)
	if err != nil {
		return c.startFailed("load_template", err)
	}
	rendered, err := xmrig.Render(template, cfg, c.workerID)
	if err != nil {
		return c.startFailed("render", err)
	}
	configPath := filepath.Join(c.options.WorkDir, c.options.ConfigName)
	if err := fsutil.AtomicWriteFile(configPath, rendered.Body, 0o600); err != nil {
		return c.startFailed("write_config", &domain.LaunchError{Op: "write config", Err: err})
	}

	parser := xmrig.NewParser(c.options.LogTail, c.options.Output)
	spec := domain.LaunchSpec{
		Path: c.executablePath(),
		Args: c.options.Args,
		Dir:  c.options.WorkDir,
		Env:  workerEnv(os.Environ(), c.options.ExtraEnv, c.options.WorkDir),
	}
	handle, err := c.supervisor.Start(ctx, spec, parser)
	if err != nil {
		// The supervisor reports its own launch failures.
		return err
	}

	c.handle = handle
	c.parser.Store(parser)
	c.logger.Info().
		Str("pool", cfg.Pool).
		Str("username", xmrig.Username(cfg, c.workerID)).
		Int("threads", cfg.Threads).
		Int("max_cpu", cfg.MaxCPU).
		Int("pid", handle.PID).
		Msg("mining started")
	return nil
}

func (c *Controller) startFailed(operation string, err error) error {
	c.logger.Error().Err(err).Str("operation", operation).Msg("mining start failed")
	observability.CaptureError(err, map[string]string{
		"component": "controller",
		"operation": operation,
	}, nil)
	return err
}

func (c *Controller) executablePath() string {
	if filepath.IsAbs(c.options.Executable) {
		return c.options.Executable
	}
	return filepath.Join(c.options.WorkDir, c.options.Executable)
}

// Stop terminates the worker. Metrics keep their last values until the next
// Start. The wait is bounded by the supervisor's stop timeout.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	if c.handle.IsZero() {
		return nil
	}
	handle := c.handle
	c.handle = domain.WorkerHandle{}
	if err := c.supervisor.Stop(handle); err != nil {
		return err
	}
	c.logger.Info().Int("pid", handle.PID).Msg("mining stopped")
	return nil
}

// Snapshot returns the metrics of the current or most recent session.
func (c *Controller) Snapshot() domain.Metrics {
	return c.parser.Load().Snapshot()
}

func (c *Controller) Status() domain.WorkerStatus {
	return c.supervisor.Status()
}

// Logs returns up to n of the newest output lines, oldest first.
func (c *Controller) Logs(n int) []domain.LogEntry {
	lines := c.Snapshot().Lines
	n = lo.Clamp(n, 0, len(lines))
	return lines[len(lines)-n:]
}

func (c *Controller) LogTail() int {
	return c.options.LogTail
}

// AvailableParallelism is a display hint; thread counts above it are still
// accepted.
func (c *Controller) AvailableParallelism() int {
	return c.specsReader.LogicalCores()
}

// SuggestedThreads is half the logical cores, at least one.
func (c *Controller) SuggestedThreads() int {
	return max(1, c.AvailableParallelism()/2)
}

func (c *Controller) Specs(ctx context.Context) (domain.HostSpecs, error) {
	return c.specsReader.ReadSpecs(ctx)
}

// Close stops the worker unconditionally. It must run before the process
// exits so no worker outlives the controller.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = domain.WorkerHandle{}
	return c.supervisor.Close()
}
