// Package util provides configuration and logging for linkpulse.
package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/user/linkpulse/internal/model"
)

// EnvPrefix prefixes environment overrides, e.g. LINKPULSE_PROBE_METHOD.
const EnvPrefix = "LINKPULSE"

// Config holds all application configuration.
type Config struct {
	DataDir   string `mapstructure:"data_dir"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Seed target list, parsed like interactive input.
	Targets string `mapstructure:"targets"`

	Interval        time.Duration  `mapstructure:"interval"`
	WarnThresholdMs int            `mapstructure:"warn_threshold_ms"`
	Retention       time.Duration  `mapstructure:"retention"`
	Colors          model.ColorMap `mapstructure:"colors"`

	Probe    ProbeConfig    `mapstructure:"probe"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Web      WebConfig      `mapstructure:"web"`

	StatusInterval time.Duration `mapstructure:"status_interval"`
}

// ProbeConfig selects and tunes the probe executor.
type ProbeConfig struct {
	Method     string        `mapstructure:"method"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Count      int           `mapstructure:"count"`
	Privileged bool          `mapstructure:"privileged"`
	TCPPorts   []int         `mapstructure:"tcp_ports"`
	SimLoss    float64       `mapstructure:"sim_loss"`
}

// TraceConfig tunes path tracing and the trace archive.
type TraceConfig struct {
	MaxHops   int           `mapstructure:"max_hops"`
	Wait      time.Duration `mapstructure:"wait"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retention time.Duration `mapstructure:"retention"`
}

// ResolverConfig tunes display-name lookups.
type ResolverConfig struct {
	Rate       float64       `mapstructure:"rate"`
	Burst      int           `mapstructure:"burst"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Nameserver string        `mapstructure:"nameserver"`
}

// WebConfig configures the HTTP server.
type WebConfig struct {
	Port int `mapstructure:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".linkpulse")
	s := model.DefaultSettings()

	return &Config{
		DataDir:   dataDir,
		LogLevel:  "info",
		LogFormat: "json",
		LogFile:   filepath.Join(dataDir, "linkpulse.log"),

		Targets: "8.8.8.8, 1.1.1.1",

		Interval:        s.Interval,
		WarnThresholdMs: s.WarnThreshold,
		Retention:       s.Retention,
		Colors:          s.Colors,

		Probe: ProbeConfig{
			Method:  "icmp",
			Timeout: 2 * time.Second,
			Count:   1,
		},
		Trace: TraceConfig{
			MaxHops:   30,
			Wait:      2 * time.Second,
			Timeout:   90 * time.Second,
			Retention: 7 * 24 * time.Hour,
		},
		Resolver: ResolverConfig{
			Rate:    10,
			Burst:   5,
			Timeout: 2 * time.Second,
		},
		Web: WebConfig{Port: 8080},

		StatusInterval: 5 * time.Second,
	}
}

// LoadConfig loads configuration from a file and the environment. With an
// empty path, config.yaml is looked up in the default data dir and ".".
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(cfg.DataDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return cfg, nil
}

// secondsToDurationHook reads bare numbers ("2", 1.5) for duration fields as
// seconds. Values that already are durations pass through unchanged.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		var secs float64
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			secs = float64(reflect.ValueOf(data).Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			secs = float64(reflect.ValueOf(data).Uint())
		case reflect.Float32, reflect.Float64:
			secs = reflect.ValueOf(data).Float()
		case reflect.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(data.(string)), 64)
			if err != nil {
				return data, nil
			}
			secs = f
		default:
			return data, nil
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("targets", cfg.Targets)
	v.SetDefault("interval", cfg.Interval)
	v.SetDefault("warn_threshold_ms", cfg.WarnThresholdMs)
	v.SetDefault("retention", cfg.Retention)
	v.SetDefault("colors.healthy", cfg.Colors.Healthy)
	v.SetDefault("colors.degraded", cfg.Colors.Degraded)
	v.SetDefault("colors.failed", cfg.Colors.Failed)
	v.SetDefault("colors.paused", cfg.Colors.Paused)
	v.SetDefault("probe.method", cfg.Probe.Method)
	v.SetDefault("probe.timeout", cfg.Probe.Timeout)
	v.SetDefault("probe.count", cfg.Probe.Count)
	v.SetDefault("probe.privileged", cfg.Probe.Privileged)
	v.SetDefault("probe.tcp_ports", cfg.Probe.TCPPorts)
	v.SetDefault("probe.sim_loss", cfg.Probe.SimLoss)
	v.SetDefault("trace.max_hops", cfg.Trace.MaxHops)
	v.SetDefault("trace.wait", cfg.Trace.Wait)
	v.SetDefault("trace.timeout", cfg.Trace.Timeout)
	v.SetDefault("trace.retention", cfg.Trace.Retention)
	v.SetDefault("resolver.rate", cfg.Resolver.Rate)
	v.SetDefault("resolver.burst", cfg.Resolver.Burst)
	v.SetDefault("resolver.timeout", cfg.Resolver.Timeout)
	v.SetDefault("resolver.nameserver", cfg.Resolver.Nameserver)
	v.SetDefault("web.port", cfg.Web.Port)
	v.SetDefault("status_interval", cfg.StatusInterval)
}

// Settings converts the monitoring parameters to model.Settings.
func (c *Config) Settings() model.Settings {
	return model.Settings{
		Interval:      c.Interval,
		WarnThreshold: c.WarnThresholdMs,
		Retention:     c.Retention,
		Colors:        c.Colors,
	}
}

// Validate checks the configuration for values the monitor cannot run with.
func (c *Config) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Probe.Method {
	case "icmp", "tcp", "sim":
	default:
		return fmt.Errorf("config: unknown probe.method %q", c.Probe.Method)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("config: web.port %d out of range", c.Web.Port)
	}
	if c.DataDir == "" {
		return errors.New("config: data_dir must not be empty")
	}
	return nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
