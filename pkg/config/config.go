// Package config handles loading and saving cascadegrid configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/cascadegrid/config.yaml
//   - Data:    ~/.local/share/cascadegrid/ (exported snapshots)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/cascadegrid/pkg/model"
)

const appName = "cascadegrid"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// GridConfig sizes the grid and its window cache.
type GridConfig struct {
	BlockSize       int `yaml:"block_size,omitempty"`        // Rows per cached block
	MaxCachedBlocks int `yaml:"max_cached_blocks,omitempty"` // Blocks kept before LRU eviction
	InitialRows     int `yaml:"initial_rows,omitempty"`      // Rows created at startup
	AppendDefault   int `yaml:"append_default,omitempty"`    // Prefilled value of the add-rows form
}

// SeedConfig points at the option forest to load.
type SeedConfig struct {
	Path           string `yaml:"path,omitempty"`             // JSON, YAML or SQLite; empty uses the builtin forest
	Watch          bool   `yaml:"watch,omitempty"`            // Merge additions when the file changes
	PollIntervalMs int    `yaml:"poll_interval_ms,omitempty"` // Polling fallback period; 0 uses the watcher default
	DebounceMs     int    `yaml:"debounce_ms,omitempty"`      // Quiet period before a reload; 0 uses the watcher default
}

// PollInterval returns PollIntervalMs as a duration.
func (s SeedConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// Debounce returns DebounceMs as a duration.
func (s SeedConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	Theme string `yaml:"theme,omitempty"` // glamour style for the help screen
}

// Config is the top-level configuration for cascadegrid.
type Config struct {
	Levels []string   `yaml:"levels,omitempty"` // Column titles; the first is the ID column
	Grid   GridConfig `yaml:"grid,omitempty"`
	Seed   SeedConfig `yaml:"seed,omitempty"`
	UI     UIConfig   `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Levels: model.DefaultSchema().Levels,
		Grid: GridConfig{
			BlockSize:       100,
			MaxCachedBlocks: 10,
			InitialRows:     100,
			AppendDefault:   100000,
		},
		UI: UIConfig{
			Theme: "dracula",
		},
	}
}

// ConfigDir returns the XDG config directory for cascadegrid.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the XDG data directory for cascadegrid.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. Fields absent from the file
// keep their defaults. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Seed.Path = expandHome(cfg.Seed.Path)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks sizes and the level schema.
func (c Config) Validate() error {
	checks := []struct {
		field string
		value int
	}{
		{"grid.block_size", c.Grid.BlockSize},
		{"grid.max_cached_blocks", c.Grid.MaxCachedBlocks},
		{"grid.append_default", c.Grid.AppendDefault},
	}
	for _, chk := range checks {
		if chk.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, chk.field, chk.value)
		}
	}
	nonNegative := []struct {
		field string
		value int
	}{
		{"grid.initial_rows", c.Grid.InitialRows},
		{"seed.poll_interval_ms", c.Seed.PollIntervalMs},
		{"seed.debounce_ms", c.Seed.DebounceMs},
	}
	for _, chk := range nonNegative {
		if chk.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidConfig, chk.field, chk.value)
		}
	}
	if err := c.Schema().Validate(); err != nil {
		return fmt.Errorf("%w: levels: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Schema returns the grid schema described by Levels.
func (c Config) Schema() model.Schema {
	return model.Schema{Levels: append([]string(nil), c.Levels...)}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
