package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/restartfu/grid-miner/internal/adapters/http"
	specsadapter "github.com/restartfu/grid-miner/internal/adapters/specs"
	"github.com/restartfu/grid-miner/internal/adapters/store"
	"github.com/restartfu/grid-miner/internal/adapters/xmrig"
	"github.com/restartfu/grid-miner/internal/app"
	"github.com/restartfu/grid-miner/internal/config"
	"github.com/restartfu/grid-miner/internal/observability"
	"github.com/restartfu/grid-miner/internal/report"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "grid-miner: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Log, os.Stderr)
	flushSentry, sentryEnabled, err := observability.InitSentry(cfg.Sentry)
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	defer flushSentry()

	for _, dir := range []string{cfg.WorkDir, cfg.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	kv, err := store.Open(ctx, cfg.Store.Driver, cfg.DataDir)
	if err != nil {
		// The controller falls back to a session scoped identity.
		logger.Error().Err(err).Str("driver", cfg.Store.Driver).Msg("open identity store")
		observability.CaptureError(err, map[string]string{
			"component": "store",
			"operation": "open",
		}, nil)
		kv = nil
	} else {
		defer func() {
			if err := kv.Close(); err != nil {
				logger.Warn().Err(err).Msg("close identity store")
			}
		}()
	}

	supervisor := xmrig.NewSupervisor(logger, xmrig.Config{StopTimeout: cfg.Xmrig.StopTimeout})
	specsReader := specsadapter.NewReader()
	options := app.Options{
		WorkDir:      cfg.WorkDir,
		Executable:   cfg.Xmrig.Executable,
		Args:         cfg.Xmrig.Args,
		ConfigName:   cfg.Xmrig.ConfigName,
		TemplatePath: cfg.Xmrig.Template,
		ExtraEnv:     cfg.Xmrig.Env,
		LogTail:      cfg.Xmrig.LogTail,
	}
	if cfg.Xmrig.MirrorOutput {
		options.Output = os.Stdout
	}
	controller := app.NewController(ctx, kv, supervisor, specsReader, logger, options)
	defer func() {
		if err := controller.Close(); err != nil {
			logger.Warn().Err(err).Msg("stop worker")
		}
	}()

	if cfg.Mining.Autostart {
		if err := controller.Start(ctx, cfg.Mining.Session()); err != nil {
			logger.Error().Err(err).Msg("autostart mining")
		}
	}

	echoServer := httpadapter.NewEcho(sentryEnabled, os.Stdout)
	httpadapter.NewServer(controller, logger).Register(echoServer)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           echoServer,
		ReadHeaderTimeout: 5 * time.Second,
	}

	model := ""
	if hostSpecs, err := specsReader.ReadSpecs(ctx); err == nil {
		model = hostSpecs.Model
	}
	reporter := report.New(controller, logger, cfg.Report.Interval, model)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return reporter.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Msg("grid-miner http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	err = group.Wait()
	logShutdown(logger, err)
	return err
}

func logShutdown(logger zerolog.Logger, err error) {
	if err != nil {
		logger.Error().Err(err).Msg("shutdown")
		return
	}
	logger.Info().Msg("shutdown complete")
}
