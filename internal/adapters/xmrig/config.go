package xmrig

import "time"

const defaultStopTimeout = 5 * time.Second

type Config struct {
	// StopTimeout is how long Stop waits after the graceful signal before
	// killing the worker.
	StopTimeout time.Duration
}

func normalizeConfig(cfg Config) Config {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return cfg
}
