package xmrig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restartfu/grid-miner/internal/domain"
	"github.com/restartfu/grid-miner/internal/observability"
	"github.com/restartfu/grid-miner/internal/ports"
)

var errWorkerExited = errors.New("worker exited unexpectedly")

// Supervisor runs at most one worker process at a time and feeds its combined
// stdout and stderr into an OutputConsumer.
type Supervisor struct {
	logger zerolog.Logger
	config Config
	state  *state

	// mu serializes Start, Stop and Close. Status and IsRunning only touch
	// state and never wait on it.
	mu      sync.Mutex
	current *session
}

type session struct {
	handle domain.WorkerHandle
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSupervisor(logger zerolog.Logger, config Config) *Supervisor {
	return &Supervisor{
		logger: logger.With().Str("component", "supervisor").Logger(),
		config: normalizeConfig(config),
		state:  newState(),
	}
}

// Start stops the running worker, if any, and launches a new one. The
// previous process and its reader have exited by the time the new process is
// started.
func (s *Supervisor) Start(ctx context.Context, spec domain.LaunchSpec, consumer ports.OutputConsumer) (domain.WorkerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.stopLocked(s.current)
		s.current = nil
	}

	sess, pr, err := s.launch(ctx, spec)
	if err != nil {
		s.logger.Error().Err(err).Str("path", spec.Path).Msg("worker launch failed")
		observability.CaptureError(err, map[string]string{
			"component": "xmrig",
			"operation": "start",
		}, map[string]interface{}{
			"path": spec.Path,
			"dir":  spec.Dir,
		})
		s.state.recordFailure(err)
		return domain.WorkerHandle{}, err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	// Closing the read end unblocks a reader waiting on a silent worker.
	context.AfterFunc(readCtx, func() { _ = pr.Close() })

	s.state.recordStart(sess.handle)
	s.current = sess
	s.logger.Info().
		Str("handle", sess.handle.ID).
		Int("pid", sess.handle.PID).
		Str("path", spec.Path).
		Msg("worker started")

	go s.run(readCtx, sess, pr, consumer)
	return sess.handle, nil
}

func (s *Supervisor) launch(ctx context.Context, spec domain.LaunchSpec) (*session, *os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, &domain.LaunchError{Op: "start", Err: err}
	}
	path, err := resolveExecutable(spec.Path)
	if err != nil {
		return nil, nil, err
	}
	if spec.Dir != "" {
		info, err := os.Stat(spec.Dir)
		if err != nil {
			return nil, nil, &domain.LaunchError{Op: "workdir", Err: err}
		}
		if !info.IsDir() {
			return nil, nil, &domain.LaunchError{Op: "workdir", Err: fmt.Errorf("%s is not a directory", spec.Dir)}
		}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, nil, &domain.LaunchError{Op: "pipe", Err: err}
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, nil, &domain.LaunchError{Op: "exec", Err: err}
	}
	// The child holds its own copy of the write end; EOF arrives when it exits.
	_ = pw.Close()

	return &session{
		handle: domain.WorkerHandle{
			ID:        uuid.NewString(),
			PID:       cmd.Process.Pid,
			StartedAt: time.Now().UTC(),
		},
		cmd:  cmd,
		done: make(chan struct{}),
	}, pr, nil
}

func (s *Supervisor) run(ctx context.Context, sess *session, pr *os.File, consumer ports.OutputConsumer) {
	defer close(sess.done)

	if err := consumer.Consume(ctx, pr); err != nil {
		s.logger.Warn().Err(err).Str("handle", sess.handle.ID).Msg("worker output reader stopped")
		observability.CaptureError(err, map[string]string{
			"component": "xmrig",
			"operation": "log_scan",
		}, nil)
		if ctx.Err() == nil {
			// Keep the pipe drained so the worker does not block on writes.
			_, _ = io.Copy(io.Discard, pr)
		}
	}
	_ = pr.Close()

	waitErr := sess.cmd.Wait()
	exitedAt := time.Now().UTC()
	if ctx.Err() != nil {
		s.state.recordExit(sess.handle.ID, exitedAt, nil)
		s.logger.Info().Str("handle", sess.handle.ID).Msg("worker stopped")
		return
	}

	if waitErr == nil {
		waitErr = errWorkerExited
	}
	s.logger.Warn().Err(waitErr).Str("handle", sess.handle.ID).Msg("worker exited")
	observability.CaptureError(waitErr, map[string]string{
		"component": "xmrig",
		"operation": "wait",
	}, nil)
	s.state.recordExit(sess.handle.ID, exitedAt, waitErr)
}

// Stop terminates the worker behind handle. Stopping a handle that is not
// the current one, or one that already exited, is a no-op.
func (s *Supervisor) Stop(handle domain.WorkerHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle.IsZero() || s.current == nil || s.current.handle.ID != handle.ID {
		return nil
	}
	s.stopLocked(s.current)
	s.current = nil
	return nil
}

func (s *Supervisor) stopLocked(sess *session) {
	sess.cancel()

	select {
	case <-sess.done:
		return
	default:
	}

	if err := terminate(sess.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug().Err(err).Str("handle", sess.handle.ID).Msg("terminate worker")
	}

	timer := time.NewTimer(s.config.StopTimeout)
	defer timer.Stop()
	select {
	case <-sess.done:
		return
	case <-timer.C:
	}

	s.logger.Warn().
		Str("handle", sess.handle.ID).
		Dur("timeout", s.config.StopTimeout).
		Msg("worker ignored termination, killing")
	if err := sess.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Error().Err(err).Str("handle", sess.handle.ID).Msg("kill worker")
	}
	<-sess.done
}

func (s *Supervisor) IsRunning(handle domain.WorkerHandle) bool {
	return s.state.isRunning(handle.ID)
}

func (s *Supervisor) Status() domain.WorkerStatus {
	return s.state.snapshot()
}

// Close stops whatever worker is running. It is safe to call more than once.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.stopLocked(s.current)
		s.current = nil
	}
	return nil
}

func resolveExecutable(path string) (string, error) {
	if path == "" {
		return "", &domain.LaunchError{Op: "lookup", Err: errors.New("no executable configured")}
	}
	if !strings.ContainsRune(path, os.PathSeparator) && !strings.ContainsRune(path, '/') {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return "", &domain.LaunchError{Op: "lookup", Err: err}
		}
		return resolved, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &domain.LaunchError{Op: "stat", Err: err}
	}
	if info.IsDir() {
		return "", &domain.LaunchError{Op: "stat", Err: fmt.Errorf("%s is a directory", path)}
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return "", &domain.LaunchError{Op: "stat", Err: fmt.Errorf("%s: %w", path, os.ErrPermission)}
	}
	return path, nil
}
