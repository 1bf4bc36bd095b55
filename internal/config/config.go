// Package config loads shieldmon settings from defaults, an optional YAML
// file and SHIELDMON_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/shieldmon/internal/daemon"
	"github.com/eliteGoblin/focusd/shieldmon/internal/infra"
	"github.com/eliteGoblin/focusd/shieldmon/internal/usecase"
)

// FileName is the config file looked up in the data directory.
const FileName = "config.yaml"

// Invoke modes for the scheduler daemon.
const (
	InvokeExec   = "exec"
	InvokeInproc = "inproc"
)

// Config is the full shieldmon configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Store     StoreConfig     `yaml:"store"`
	Schedules SchedulesConfig `yaml:"schedules"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Backend   BackendConfig   `yaml:"backend"`
	Log       LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	Driver      infra.StoreDriver `yaml:"driver"`
	KeySource   infra.KeySource   `yaml:"key_source"`
	BusyTimeout time.Duration     `yaml:"busy_timeout"`
}

type SchedulesConfig struct {
	MinimumWindow    time.Duration `yaml:"minimum_window"`
	MaxOverride      time.Duration `yaml:"max_override"`
	DiagnosticLead   time.Duration `yaml:"diagnostic_lead"`
	DiagnosticLength time.Duration `yaml:"diagnostic_length"`
}

type DaemonConfig struct {
	ResyncInterval    time.Duration `yaml:"resync_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	InvokeTimeout     time.Duration `yaml:"invoke_timeout"`
	InvokeMode        string        `yaml:"invoke_mode"`
}

type BackendConfig struct {
	MinimumInterval time.Duration `yaml:"minimum_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration for the current exec mode.
func Default() *Config {
	return DefaultFor(infra.DetectExecMode().DataDir)
}

// DefaultFor returns the built-in configuration rooted at dataDir.
func DefaultFor(dataDir string) *Config {
	registry := usecase.DefaultScheduleRegistryConfig()
	scheduler := daemon.DefaultSchedulerConfig()
	return &Config{
		DataDir: dataDir,
		Store: StoreConfig{
			Driver:      infra.DriverSQLCipher,
			KeySource:   infra.KeySourceFile,
			BusyTimeout: 5 * time.Second,
		},
		Schedules: SchedulesConfig{
			MinimumWindow:    registry.MinimumWindow,
			MaxOverride:      usecase.DefaultMaxOverride,
			DiagnosticLead:   registry.DiagnosticLead,
			DiagnosticLength: registry.DiagnosticLength,
		},
		Daemon: DaemonConfig{
			ResyncInterval:    scheduler.ResyncInterval,
			HeartbeatInterval: scheduler.HeartbeatInterval,
			SweepInterval:     scheduler.SweepInterval,
			InvokeTimeout:     scheduler.InvokeTimeout,
			InvokeMode:        InvokeExec,
		},
		Backend: BackendConfig{
			MinimumInterval: infra.DefaultMinimumInterval,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. dataDir and path may be empty: the data
// directory then comes from SHIELDMON_DATA_DIR or the exec mode, and the file
// from <data_dir>/config.yaml, which may be absent. An explicit path must exist.
func Load(path, dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = os.Getenv("SHIELDMON_DATA_DIR")
	}
	var cfg *Config
	if dataDir != "" {
		cfg = DefaultFor(dataDir)
	} else {
		cfg = Default()
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.DataDir, FileName)
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes parses YAML over the defaults without environment overrides.
func LoadFromBytes(data []byte, dataDir string) (*Config, error) {
	cfg := DefaultFor(dataDir)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHIELDMON_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SHIELDMON_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = infra.StoreDriver(v)
	}
	if v := os.Getenv("SHIELDMON_KEY_SOURCE"); v != "" {
		cfg.Store.KeySource = infra.KeySource(v)
	}
	if v := os.Getenv("SHIELDMON_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch cfg.Store.Driver {
	case infra.DriverSQLCipher, infra.DriverSQLite:
	default:
		return fmt.Errorf("invalid store.driver %q", cfg.Store.Driver)
	}
	switch cfg.Store.KeySource {
	case infra.KeySourceFile, infra.KeySourceKeyring:
	default:
		return fmt.Errorf("invalid store.key_source %q", cfg.Store.KeySource)
	}
	switch cfg.Daemon.InvokeMode {
	case InvokeExec, InvokeInproc:
	default:
		return fmt.Errorf("invalid daemon.invoke_mode %q", cfg.Daemon.InvokeMode)
	}
	if cfg.Schedules.MaxOverride < usecase.MinOverride {
		return fmt.Errorf("schedules.max_override must be at least %s", usecase.MinOverride)
	}
	positive := map[string]time.Duration{
		"store.busy_timeout":        cfg.Store.BusyTimeout,
		"schedules.minimum_window":  cfg.Schedules.MinimumWindow,
		"daemon.resync_interval":    cfg.Daemon.ResyncInterval,
		"daemon.heartbeat_interval": cfg.Daemon.HeartbeatInterval,
		"daemon.sweep_interval":     cfg.Daemon.SweepInterval,
		"daemon.invoke_timeout":     cfg.Daemon.InvokeTimeout,
		"backend.minimum_interval":  cfg.Backend.MinimumInterval,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// StorePath is the shared store database file.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, infra.StoreFileName)
}

// StoreOptions returns the SQL store options for key.
func (c *Config) StoreOptions(key []byte) infra.SQLStoreOptions {
	return infra.SQLStoreOptions{
		DataDir:     c.DataDir,
		Driver:      c.Store.Driver,
		Key:         key,
		BusyTimeout: c.Store.BusyTimeout,
	}
}

// EngineConfig returns the usecase engine tunables.
func (c *Config) EngineConfig() usecase.EngineConfig {
	return usecase.EngineConfig{
		Schedules: usecase.ScheduleRegistryConfig{
			MinimumWindow:    c.Schedules.MinimumWindow,
			DiagnosticLead:   c.Schedules.DiagnosticLead,
			DiagnosticLength: c.Schedules.DiagnosticLength,
		},
		MaxOverride: c.Schedules.MaxOverride,
	}
}

// SchedulerConfig returns the daemon settings for a binary at execPath.
func (c *Config) SchedulerConfig(execPath, version string) daemon.SchedulerConfig {
	sc := daemon.DefaultSchedulerConfig()
	sc.ResyncInterval = c.Daemon.ResyncInterval
	sc.HeartbeatInterval = c.Daemon.HeartbeatInterval
	sc.SweepInterval = c.Daemon.SweepInterval
	sc.InvokeTimeout = c.Daemon.InvokeTimeout
	sc.StorePath = c.StorePath()
	sc.ExecPath = execPath
	sc.Version = version
	return sc
}
