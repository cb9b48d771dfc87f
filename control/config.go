// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed configuration: defaults, optional file, HIOLOAD_* environment overrides,
// validation, and file watching for scheduler tuning.

package control

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HIOLOAD_LOG_LEVEL.
const EnvPrefix = "HIOLOAD"

// Config is the full engine configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Contexts  []ContextConfig `mapstructure:"contexts" validate:"unique=Name,dive"`
	Pools     []PoolConfig    `mapstructure:"pools" validate:"unique=Name,dive"`
}

// LogConfig selects level and output encoding.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// SchedulerConfig holds the idle-loop tuning shared by all Contexts.
// CPUCount 0 means detect from the process affinity mask.
type SchedulerConfig struct {
	StarvationThreshold time.Duration `mapstructure:"starvation_threshold" validate:"gt=0"`
	SpinLimit           int           `mapstructure:"spin_limit" validate:"gte=0,lte=30"`
	CPUCount            int           `mapstructure:"cpu_count" validate:"gte=0"`
}

// MetricsConfig toggles the prometheus exporter.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Enabled true,excludesall=-."`
}

// ContextConfig describes one Context created at startup.
type ContextConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	StartingCPU int    `mapstructure:"starting_cpu" validate:"gte=0"`
	Workers     int    `mapstructure:"workers" validate:"gt=0"`
}

// PoolConfig describes one non-cooperating pinned pool created at startup.
type PoolConfig struct {
	Name         string        `mapstructure:"name" validate:"required"`
	StartingCPU  int           `mapstructure:"starting_cpu" validate:"gte=0"`
	Workers      int           `mapstructure:"workers" validate:"gt=0"`
	SwapInterval time.Duration `mapstructure:"swap_interval" validate:"gte=0"`
}

// Defaults mirrors the values applied when no file or environment sets a key.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{
			StarvationThreshold: 300 * time.Millisecond,
			SpinLimit:           10,
		},
		Metrics: MetricsConfig{Namespace: "hioload"},
	}
}

// Loader wraps a viper instance configured for the engine keys.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate
}

// NewLoader prepares defaults and environment binding. path may be empty.
func NewLoader(path string) *Loader {
	v := viper.New()
	d := Defaults()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("scheduler.starvation_threshold", d.Scheduler.StarvationThreshold)
	v.SetDefault("scheduler.spin_limit", d.Scheduler.SpinLimit)
	v.SetDefault("scheduler.cpu_count", d.Scheduler.CPUCount)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, validate: validator.New()}
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Load reads the file, if any, and returns a validated Config.
func (l *Loader) Load() (*Config, error) {
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Watch re-decodes the file on every change and hands the result to fn.
// Invalid edits are reported through err and leave the previous Config in force.
func (l *Loader) Watch(fn func(cfg *Config, err error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		fn(l.decode())
	})
	l.v.WatchConfig()
}

// Load is a shortcut for NewLoader(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}
