// Package config collects the process settings shared by the CLI and the MCP
// server.
//
// Settings come from the environment first; command-line flags override them.
//
//	RMBG_LOG_LEVEL      debug, info, warn or error (default info)
//	RMBG_CACHE_DIR      weight cache directory; "off" disables caching
//	RMBG_ORT_LIBRARY    path to the onnxruntime shared library
//	RMBG_RESAMPLER      imaging, bild, xdraw or nfnt (default imaging)
//	RMBG_FILTER         linear, catmullrom or lanczos (default linear)
//	RMBG_DEFAULT_MODEL  model used when a request names none (default u2netp)
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/rmbg-local/internal/imaging"
	"github.com/ironsheep/rmbg-local/internal/registry"
)

// Environment variable names.
const (
	EnvLogLevel     = "RMBG_LOG_LEVEL"
	EnvCacheDir     = "RMBG_CACHE_DIR"
	EnvORTLibrary   = "RMBG_ORT_LIBRARY"
	EnvResampler    = "RMBG_RESAMPLER"
	EnvFilter       = "RMBG_FILTER"
	EnvDefaultModel = "RMBG_DEFAULT_MODEL"
)

// CacheDisabled as the cache directory turns the weight cache off.
const CacheDisabled = "off"

// Config is the resolved process configuration.
type Config struct {
	LogLevel     string
	CacheDir     string
	ORTLibrary   string
	Resampler    string
	Filter       string
	DefaultModel string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:     "info",
		CacheDir:     defaultCacheDir(),
		Resampler:    imaging.BackendImaging,
		Filter:       string(imaging.FilterLinear),
		DefaultModel: string(registry.Default()),
	}
}

// FromEnv returns Default overridden by any RMBG_* variables set in the
// process environment.
func FromEnv() Config {
	return FromLookup(os.LookupEnv)
}

// FromLookup is FromEnv with a custom lookup function.
func FromLookup(lookup func(string) (string, bool)) Config {
	cfg := Default()
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.LogLevel, EnvLogLevel)
	set(&cfg.CacheDir, EnvCacheDir)
	set(&cfg.ORTLibrary, EnvORTLibrary)
	set(&cfg.Resampler, EnvResampler)
	set(&cfg.Filter, EnvFilter)
	set(&cfg.DefaultModel, EnvDefaultModel)
	return cfg
}

// Validate checks every field that has a closed set of values.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.NewResampler(); err != nil {
		return err
	}
	if _, err := c.Model(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// NewLogger returns a text logger writing to w at the configured level.
// An invalid level falls back to info.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.Level()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewResampler builds the configured resampling backend.
func (c Config) NewResampler() (imaging.Resampler, error) {
	f, err := imaging.ParseFilter(c.Filter)
	if err != nil {
		return nil, err
	}
	return imaging.NewResampler(c.Resampler, f)
}

// Model parses DefaultModel.
func (c Config) Model() (registry.ModelType, error) {
	return registry.Parse(c.DefaultModel)
}

// WeightCacheDir is CacheDir with CacheDisabled mapped to "".
func (c Config) WeightCacheDir() string {
	if strings.EqualFold(c.CacheDir, CacheDisabled) {
		return ""
	}
	return c.CacheDir
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "rmbg-local", "models")
}
