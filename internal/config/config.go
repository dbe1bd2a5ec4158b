package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/restartfu/grid-miner/internal/adapters/store"
	"github.com/restartfu/grid-miner/internal/domain"
	"github.com/restartfu/grid-miner/internal/observability"
)

const (
	envPrefix = "GRID"
	appDir    = "grid-miner"
)

type Config struct {
	Addr    string                     `mapstructure:"addr"`
	WorkDir string                     `mapstructure:"work_dir"`
	DataDir string                     `mapstructure:"data_dir"`
	Xmrig   XmrigConfig                `mapstructure:"xmrig"`
	Store   StoreConfig                `mapstructure:"store"`
	Log     observability.LogConfig    `mapstructure:"log"`
	Report  ReportConfig               `mapstructure:"report"`
	Mining  MiningConfig               `mapstructure:"mining"`
	Sentry  observability.SentryConfig `mapstructure:"sentry"`
}

type XmrigConfig struct {
	Executable   string        `mapstructure:"executable"`
	Args         []string      `mapstructure:"args"`
	ConfigName   string        `mapstructure:"config_name"`
	Template     string        `mapstructure:"template"`
	Env          []string      `mapstructure:"env"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
	LogTail      int           `mapstructure:"log_tail"`
	MirrorOutput bool          `mapstructure:"mirror_output"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type ReportConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MiningConfig is the session started at boot when Autostart is set.
type MiningConfig struct {
	Autostart      bool   `mapstructure:"autostart"`
	Pool           string `mapstructure:"pool"`
	Username       string `mapstructure:"username"`
	Threads        int    `mapstructure:"threads"`
	MaxCPU         int    `mapstructure:"max_cpu"`
	AppendWorkerID bool   `mapstructure:"append_worker_id"`
}

// Session converts the boot settings into a worker config.
func (m MiningConfig) Session() domain.MiningConfig {
	return domain.MiningConfig{
		Pool:           m.Pool,
		Username:       m.Username,
		Threads:        m.Threads,
		MaxCPU:         m.MaxCPU,
		AppendWorkerID: m.AppendWorkerID,
	}
}

// Load resolves the configuration from flags, GRID_* environment variables,
// an optional YAML file and defaults, in that order of precedence.
func Load(args []string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("grid-miner", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	fs.String("addr", v.GetString("addr"), "listen address")
	fs.String("work-dir", v.GetString("work_dir"), "directory holding the xmrig binary and its config")
	fs.String("data-dir", v.GetString("data_dir"), "directory holding persistent state")
	fs.String("xmrig-executable", v.GetString("xmrig.executable"), "xmrig binary name inside work-dir, or an absolute path")
	fs.StringSlice("xmrig-args", nil, "extra xmrig arguments")
	fs.String("xmrig-template", "", "path to an xmrig config template; empty uses the built in one")
	fs.Duration("xmrig-stop-timeout", v.GetDuration("xmrig.stop_timeout"), "grace period before xmrig is killed")
	fs.Bool("xmrig-mirror-output", false, "copy xmrig output to stdout")
	fs.String("store-driver", v.GetString("store.driver"), "identity store driver: file or sqlite")
	fs.String("log-level", v.GetString("log.level"), "log level")
	fs.Bool("log-pretty", false, "human readable logs")
	fs.Bool("autostart", false, "start mining at boot with the mining.* settings")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	for key, flag := range map[string]string{
		"addr":                "addr",
		"work_dir":            "work-dir",
		"data_dir":            "data-dir",
		"xmrig.executable":    "xmrig-executable",
		"xmrig.args":          "xmrig-args",
		"xmrig.template":      "xmrig-template",
		"xmrig.stop_timeout":  "xmrig-stop-timeout",
		"xmrig.mirror_output": "xmrig-mirror-output",
		"store.driver":        "store-driver",
		"log.level":           "log-level",
		"log.pretty":          "log-pretty",
		"mining.autostart":    "autostart",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"sentry.dsn":         "SENTRY_DSN",
		"sentry.environment": "SENTRY_ENVIRONMENT",
		"sentry.release":     "SENTRY_RELEASE",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", *configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	base := defaultBaseDir()
	v.SetDefault("addr", ":8080")
	v.SetDefault("work_dir", filepath.Join(base, "xmrig"))
	v.SetDefault("data_dir", base)
	v.SetDefault("xmrig.executable", "xmrig")
	v.SetDefault("xmrig.args", []string{})
	v.SetDefault("xmrig.config_name", "config.json")
	v.SetDefault("xmrig.template", "")
	v.SetDefault("xmrig.env", []string{})
	v.SetDefault("xmrig.stop_timeout", 5*time.Second)
	v.SetDefault("xmrig.log_tail", 250)
	v.SetDefault("xmrig.mirror_output", false)
	v.SetDefault("store.driver", store.DriverFile)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("report.interval", 10*time.Second)
	v.SetDefault("mining.autostart", false)
	v.SetDefault("mining.pool", "")
	v.SetDefault("mining.username", "")
	v.SetDefault("mining.threads", 1)
	v.SetDefault("mining.max_cpu", 100)
	v.SetDefault("mining.append_worker_id", true)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.release", "")
}

func defaultBaseDir() string {
	dir, err := os.UserConfigDir()
	return filepath.Join(lo.Ternary(err == nil && dir != "", dir, os.TempDir()), appDir)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		errs = append(errs, errors.New("work_dir is required"))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	switch c.Store.Driver {
	case store.DriverFile, store.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported store driver: %s", c.Store.Driver))
	}
	if c.Xmrig.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("xmrig.stop_timeout must be positive, got %s", c.Xmrig.StopTimeout))
	}
	if c.Xmrig.LogTail <= 0 {
		errs = append(errs, fmt.Errorf("xmrig.log_tail must be positive, got %d", c.Xmrig.LogTail))
	}
	if c.Report.Interval <= 0 {
		errs = append(errs, fmt.Errorf("report.interval must be positive, got %s", c.Report.Interval))
	}
	if c.Mining.Autostart {
		if err := c.Mining.Session().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mining: %w", err))
		}
	}
	return errors.Join(errs...)
}
