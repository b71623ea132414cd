// Package config loads runtime settings for the warden binary.
//
// Settings come, lowest precedence first, from built-in defaults, an
// optional .warden.{yaml,toml,json} file, and WARDEN_* environment
// variables (WARDEN_MAX_FILE_SIZE, WARDEN_SKIP_DIRS=a,b ...). Rule
// configuration is separate; see package rules.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/warden/internal/ir"
)

const (
	// AppName is the application name and environment prefix.
	AppName = "warden"
	// FileName is the settings file name without extension.
	FileName = ".warden"
)

// Config holds runtime settings.
type Config struct {
	Workers     int      `mapstructure:"workers"`
	MaxFileSize int64    `mapstructure:"max_file_size"`
	SkipDirs    []string `mapstructure:"skip_dirs"`
	MaxCycles   int      `mapstructure:"max_cycles"`
	Database    string   `mapstructure:"database"`
	LogLevel    string   `mapstructure:"log_level"`
	FailOn      string   `mapstructure:"fail_on"`
	Format      string   `mapstructure:"format"`
}

// LoadOptions control where settings are read from.
type LoadOptions struct {
	// File is an explicit settings file. It must exist.
	File string
	// Dir is searched for .warden.{yaml,toml,json} when File is empty.
	Dir string
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Workers:     runtime.NumCPU(),
		MaxFileSize: 1 << 20,
		MaxCycles:   100,
		Database:    ".warden/warden.db",
		LogLevel:    "info",
		FailOn:      string(ir.SeverityHigh),
		Format:      "text",
	}
}

// Load resolves settings and returns them with the path of the file that
// was read, or "" when none was.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("max_file_size", defaults.MaxFileSize)
	v.SetDefault("skip_dirs", defaults.SkipDirs)
	v.SetDefault("max_cycles", defaults.MaxCycles)
	v.SetDefault("database", defaults.Database)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("fail_on", defaults.FailOn)
	v.SetDefault("format", defaults.Format)

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolved := ""
	if opts.File != "" {
		if !fileExists(opts.File) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.File)
		}
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", opts.File, err)
		}
		resolved = opts.File
	} else {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			resolved = v.ConfigFileUsed()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.MaxFileSize < 1:
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	case c.MaxCycles < 1:
		return fmt.Errorf("max_cycles must be at least 1, got %d", c.MaxCycles)
	case !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel):
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	case c.FailOn != "none" && ir.Severity(c.FailOn).Rank() == 0:
		return fmt.Errorf("fail_on must be a severity or \"none\", got %q", c.FailOn)
	case c.Format != "text" && c.Format != "json":
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	return nil
}

// FailThreshold returns the severity at or above which findings fail a
// run, and false when findings never fail it.
func (c *Config) FailThreshold() (ir.Severity, bool) {
	if c.FailOn == "none" {
		return "", false
	}
	return ir.Severity(c.FailOn), true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
