// Package config loads pricecast settings from defaults, an optional YAML
// file, PRICECAST_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FlavioCFOliveira/pricecast/internal/activations"
	"github.com/FlavioCFOliveira/pricecast/internal/forecast"
	"github.com/FlavioCFOliveira/pricecast/internal/normalize"
)

// EnvPrefix prefixes every environment override, e.g. PRICECAST_FORECAST_HORIZON.
const EnvPrefix = "PRICECAST"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete application configuration
type Config struct {
	Forecast ForecastConfig `mapstructure:"forecast"`
	Training TrainingConfig `mapstructure:"training"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	// Seed fixes the random source; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`
}

// ForecastConfig selects a profile and overrides its options. Zero values
// keep the profile's own setting.
type ForecastConfig struct {
	Profile      string        `mapstructure:"profile"`
	Horizon      int           `mapstructure:"horizon"`
	MinPoints    int           `mapstructure:"min_points"`
	WindowSize   int           `mapstructure:"window_size"`
	Activation   string        `mapstructure:"activation"`
	Range        string        `mapstructure:"range"`
	Blend        string        `mapstructure:"blend"`
	Granularity  string        `mapstructure:"granularity"`
	StepInterval time.Duration `mapstructure:"step_interval"`
}

// TrainingConfig holds network training options
type TrainingConfig struct {
	HiddenSize   int     `mapstructure:"hidden_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Epochs       int     `mapstructure:"epochs"`
	// ClipValue is nil when unset so the profile's own clip applies; an
	// explicit 0 disables clipping.
	ClipValue   *float64 `mapstructure:"clip_value"`
	LogInterval int      `mapstructure:"log_interval"`
	LossLog     string   `mapstructure:"loss_log"`
	Model       string   `mapstructure:"model"`
	SaveModel   string   `mapstructure:"save_model"`
}

// OutputConfig holds forecast file options
type OutputConfig struct {
	CacheDir string `mapstructure:"cache_dir"`
}

// StorageConfig holds the run archive connection. An empty driver disables it.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig holds HTTP daemon options
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	DataDir         string        `mapstructure:"data_dir"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"profile":     "forecast.profile",
	"horizon":     "forecast.horizon",
	"activation":  "forecast.activation",
	"range":       "forecast.range",
	"blend":       "forecast.blend",
	"granularity": "forecast.granularity",
	"window":      "forecast.window_size",
	"epochs":      "training.epochs",
	"model":       "training.model",
	"save-model":  "training.save_model",
	"loss-log":    "training.loss_log",
	"cache-dir":   "output.cache_dir",
	"db-driver":   "storage.driver",
	"db-dsn":      "storage.dsn",
	"addr":        "server.addr",
	"data-dir":    "server.data_dir",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"seed":        "seed",
}

// RegisterFlags defines the flags Load knows how to bind.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("profile", "", "forecast profile: daily, simple or hourly")
	fs.Int("horizon", 0, "number of points to forecast")
	fs.String("activation", "", "hidden activation: relu or tanh")
	fs.String("range", "", "normalization range: 0,1 or -1,1")
	fs.String("blend", "", "rollout: network or blended")
	fs.String("granularity", "", "horizon spacing: daily or hourly")
	fs.Int("window", 0, "input window length")
	fs.Int("epochs", 0, "training epochs")
	fs.String("model", "", "load a pretrained model from this file")
	fs.String("save-model", "", "save the trained model to this file")
	fs.String("loss-log", "", "write per-epoch training loss CSV to this file")
	fs.String("cache-dir", "", "forecast cache directory")
	fs.String("db-driver", "", "run archive driver: sqlite or postgres")
	fs.String("db-dsn", "", "run archive data source name")
	fs.String("addr", "", "HTTP listen address")
	fs.String("data-dir", "", "directory of <coin>.csv price histories")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: json or console")
	fs.Int64("seed", 0, "random seed, 0 for a clock seed")
}

// Load reads configuration from defaults, the optional file at path, the
// environment and any flags in fs that were set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default, so the key is only known to Unmarshal once bound.
	if err := v.BindEnv("training.clip_value"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("forecast.profile", "daily")
	v.SetDefault("forecast.horizon", 0)
	v.SetDefault("forecast.min_points", 0)
	v.SetDefault("forecast.window_size", 0)
	v.SetDefault("forecast.activation", "")
	v.SetDefault("forecast.range", "")
	v.SetDefault("forecast.blend", "")
	v.SetDefault("forecast.granularity", "")
	v.SetDefault("forecast.step_interval", "0s")

	v.SetDefault("training.hidden_size", 0)
	v.SetDefault("training.learning_rate", 0.0)
	v.SetDefault("training.epochs", 0)
	v.SetDefault("training.log_interval", 50)
	v.SetDefault("training.loss_log", "")
	v.SetDefault("training.model", "")
	v.SetDefault("training.save_model", "")

	v.SetDefault("output.cache_dir", "./predictions-cache")

	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("seed", 0)
}

// Profile resolves the named profile with every non-zero override applied.
func (c *Config) Profile() (forecast.Profile, error) {
	f, t := c.Forecast, c.Training
	p, err := forecast.ProfileByName(f.Profile)
	if err != nil {
		return p, err
	}

	if f.Horizon > 0 {
		p.Horizon = f.Horizon
	}
	if f.MinPoints > 0 {
		p.MinPoints = f.MinPoints
	}
	if f.WindowSize > 0 {
		p.WindowSize = f.WindowSize
	}
	if f.Activation != "" {
		p.Activation = f.Activation
	}
	if f.Range != "" {
		if p.Range, err = normalize.ParseRange(f.Range); err != nil {
			return p, err
		}
	}
	if f.Blend != "" {
		if p.Blend, err = forecast.ParseBlend(f.Blend); err != nil {
			return p, err
		}
	}
	if f.Granularity != "" {
		if p.Granularity, err = forecast.ParseGranularity(f.Granularity); err != nil {
			return p, err
		}
	}
	if f.StepInterval > 0 {
		p.StepInterval = f.StepInterval
	}

	if t.HiddenSize > 0 {
		p.HiddenSize = t.HiddenSize
	}
	if t.LearningRate > 0 {
		p.LearningRate = t.LearningRate
	}
	if t.Epochs > 0 {
		p.Epochs = t.Epochs
	}
	if t.ClipValue != nil {
		p.ClipValue = *t.ClipValue
	}

	return p, p.Validate()
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Forecast.Horizon < 0 || c.Forecast.MinPoints < 0 || c.Forecast.WindowSize < 0 {
		return fmt.Errorf("%w: forecast sizes must not be negative", ErrInvalid)
	}
	if c.Forecast.StepInterval < 0 {
		return fmt.Errorf("%w: forecast.step_interval must not be negative", ErrInvalid)
	}
	if c.Forecast.Activation != "" {
		if _, err := activations.Parse(c.Forecast.Activation); err != nil {
			return fmt.Errorf("%w: forecast.activation: %v", ErrInvalid, err)
		}
	}

	if c.Training.HiddenSize < 0 || c.Training.Epochs < 0 || c.Training.LearningRate < 0 {
		return fmt.Errorf("%w: training values must not be negative", ErrInvalid)
	}
	if c.Training.ClipValue != nil && *c.Training.ClipValue < 0 {
		return fmt.Errorf("%w: training.clip_value must not be negative", ErrInvalid)
	}

	if _, err := c.Profile(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Output.CacheDir == "" {
		return fmt.Errorf("%w: output.cache_dir is required", ErrInvalid)
	}

	switch c.Storage.Driver {
	case "":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required when storage.driver is set", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: storage.driver must be one of: sqlite, postgres", ErrInvalid)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be one of: debug, info, warn, error", ErrInvalid)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "text":
	default:
		return fmt.Errorf("%w: logging.format must be one of: json, console", ErrInvalid)
	}
	return nil
}

// RandSeed returns Seed, or a clock-derived seed when it is zero.
func (c *Config) RandSeed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}
