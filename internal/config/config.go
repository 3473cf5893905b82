// Package config loads CLI settings from flags, IMGCONV_* environment
// variables, an optional imgconv.yaml and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AnyUserName/imgconv-cli/internal/converter"
	"github.com/AnyUserName/imgconv-cli/internal/format"
	"github.com/AnyUserName/imgconv-cli/internal/pipeline"
)

// Keys shared between flags, env and the config file.
const (
	KeyMaxFiles  = "max_files"
	KeyMaxPixels = "max_pixels"
	KeyWorkers   = "workers"
	KeyFormat    = "format"
	KeyOutDir    = "out_dir"
	KeyPace      = "pace"
	KeyOverwrite = "overwrite"
	KeyLogLevel  = "log_level"
	KeyLogFormat = "log_format"
)

// Config is the resolved configuration.
type Config struct {
	MaxFiles  int
	MaxPixels int64
	Workers   int
	Format    format.Format
	OutDir    string
	Pace      time.Duration
	Overwrite bool
	LogLevel  string
	LogFormat string
}

// NewViper returns a viper instance with defaults, env binding and config
// file search paths set up.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyMaxFiles, pipeline.DefaultMaxFiles)
	v.SetDefault(KeyMaxPixels, converter.DefaultMaxPixels)
	v.SetDefault(KeyWorkers, 1)
	v.SetDefault(KeyFormat, string(format.PNG))
	v.SetDefault(KeyOutDir, "./imgconv_out")
	v.SetDefault(KeyPace, "0s")
	v.SetDefault(KeyOverwrite, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	v.SetEnvPrefix("IMGCONV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("imgconv")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	return v
}

// ReadFile reads the config file if one exists. A missing file is not an error.
func ReadFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	f, err := format.Parse(v.GetString(KeyFormat))
	if err != nil {
		return Config{}, err
	}
	pace, err := time.ParseDuration(v.GetString(KeyPace))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyPace, err)
	}

	cfg := Config{
		MaxFiles:  v.GetInt(KeyMaxFiles),
		MaxPixels: v.GetInt64(KeyMaxPixels),
		Workers:   v.GetInt(KeyWorkers),
		Format:    f,
		OutDir:    v.GetString(KeyOutDir),
		Pace:      pace,
		Overwrite: v.GetBool(KeyOverwrite),
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
	}
	if cfg.MaxFiles < 1 {
		return Config{}, fmt.Errorf("%s must be >= 1, got %d", KeyMaxFiles, cfg.MaxFiles)
	}
	if cfg.MaxPixels < 1 {
		return Config{}, fmt.Errorf("%s must be >= 1, got %d", KeyMaxPixels, cfg.MaxPixels)
	}
	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("%s must be >= 1, got %d", KeyWorkers, cfg.Workers)
	}
	if pace < 0 {
		return Config{}, fmt.Errorf("%s must not be negative", KeyPace)
	}
	return cfg, nil
}
