// Package config loads tool configuration from defaults, an optional YAML
// file and DOSSIER_-prefixed environment variables, in that order of
// precedence. Command-line flags override all three at the call site.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full tool configuration.
type Config struct {
	// RunsDir is where run directories and the cache store live.
	RunsDir string `mapstructure:"runs_dir" validate:"required"`
	// Workers bounds pipeline fan-out concurrency.
	Workers int `mapstructure:"workers" validate:"min=1,max=64"`
	// Depth selects a research volume profile.
	Depth string `mapstructure:"depth" validate:"oneof=brief medium deep"`
	// Budget is how many sources a run gathers.
	Budget int `mapstructure:"budget" validate:"min=1,max=100"`
	// Lang is the research language tag.
	Lang string `mapstructure:"lang" validate:"required"`
	// NonInteractive suppresses clarification prompts.
	NonInteractive bool `mapstructure:"non_interactive"`

	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
}

// LoggingConfig controls the console logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output" validate:"oneof=stderr stdout"`
}

// HTTPConfig tunes the HTTP server used by serve mode.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FetchConfig selects and tunes the content fetcher.
type FetchConfig struct {
	// Mode is "sim" for offline synthesized content or "http" for live
	// fetching.
	Mode              string        `mapstructure:"mode" validate:"oneof=sim http"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" validate:"min=1"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" validate:"min=1024"`
}

// Load reads configuration. When path is empty it looks for dossier.yaml in
// the working directory and silently proceeds on absence; a path given
// explicitly must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("dossier")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read dossier.yaml: %w", err)
		}
	}

	v.SetEnvPrefix("DOSSIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("config: field %s failed %q constraint", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	if c.Fetch.Mode == "http" && c.Fetch.UserAgent == "" {
		return errors.New("config: fetch.user_agent is required when fetch.mode is http")
	}
	if c.HTTP.ShutdownTimeout < 0 {
		return errors.New("config: http.shutdown_timeout must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runs_dir", "./runs")
	v.SetDefault("workers", 5)
	v.SetDefault("depth", "medium")
	v.SetDefault("budget", 10)
	v.SetDefault("lang", "en")
	v.SetDefault("non_interactive", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("fetch.mode", "sim")
	v.SetDefault("fetch.requests_per_second", 3.0)
	v.SetDefault("fetch.burst", 3)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.user_agent", "dossier-research/1.0")
	v.SetDefault("fetch.max_body_bytes", 2<<20)
}
