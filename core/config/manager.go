// Package config loads rerere settings from defaults, YAML files, git config
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/adalundhe/rerere/core/storage"
)

// GitConfigSource reads git configuration values by "section.option" key.
type GitConfigSource interface {
	ConfigValues(keys ...string) (map[string]string, error)
}

// Git config keys consulted by Load.
const (
	GitKeyEnabled       = "rerere.enabled"
	GitKeyAutoupdate    = "rerere.autoupdate"
	GitKeyGCResolved    = "gc.rerereResolved"
	GitKeyGCUnresolved  = "gc.rerereUnresolved"
	GitKeyMarkerSize    = "merge.conflictMarkerSize"
	defaultMarkerSize   = 7
	defaultPreimageSize = 256
)

type Manager struct {
	configPtr atomic.Pointer[Config]
	dirs      *storage.Dirs
	repoDirs  *storage.RepoDirs
	git       GitConfigSource
}

type Config struct {
	Rerere RerereConfig `yaml:"rerere"`
	GC     GCConfig     `yaml:"gc"`
	Log    LogConfig    `yaml:"log"`
}

type RerereConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Autoupdate        bool   `yaml:"autoupdate"`
	MarkerSize        int    `yaml:"marker_size"`
	IncludeBase       bool   `yaml:"include_base"`
	SortSides         bool   `yaml:"sort_sides"`
	CacheDir          string `yaml:"cache_dir"`
	PreimageCacheSize int    `yaml:"preimage_cache_size"`
}

type GCConfig struct {
	Resolved   Expiry `yaml:"resolved"`
	Unresolved Expiry `yaml:"unresolved"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewManager creates a Manager holding the defaults. dirs locates the user
// config file and may be nil.
func NewManager(dirs *storage.Dirs) *Manager {
	m := &Manager{dirs: dirs}
	m.configPtr.Store(DefaultConfig())
	return m
}

// SetRepository adds the repository config file and git config layers.
// Either argument may be nil.
func (m *Manager) SetRepository(repoDirs *storage.RepoDirs, git GitConfigSource) {
	m.repoDirs = repoDirs
	m.git = git
}

func DefaultConfig() *Config {
	return &Config{
		Rerere: RerereConfig{
			Enabled:           true,
			Autoupdate:        false,
			MarkerSize:        defaultMarkerSize,
			IncludeBase:       false,
			SortSides:         true,
			PreimageCacheSize: defaultPreimageSize,
		},
		GC: GCConfig{
			Resolved:   Days(60),
			Unresolved: Days(15),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (m *Manager) Get() *Config {
	return m.configPtr.Load()
}

func (m *Manager) Load() error {
	cfg := DefaultConfig()

	if err := m.loadUserConfig(cfg); err != nil {
		return fmt.Errorf("user config: %w", err)
	}

	if err := m.loadRepoConfig(cfg); err != nil {
		return fmt.Errorf("repository config: %w", err)
	}

	if err := m.applyGitConfig(cfg); err != nil {
		return fmt.Errorf("git config: %w", err)
	}

	m.applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.configPtr.Store(cfg)
	return nil
}

func (m *Manager) loadUserConfig(cfg *Config) error {
	if m.dirs == nil {
		return nil
	}
	return loadYAMLFile(m.dirs.UserConfigFile(), cfg)
}

func (m *Manager) loadRepoConfig(cfg *Config) error {
	if m.repoDirs == nil {
		return nil
	}
	return loadYAMLFile(m.repoDirs.Config, cfg)
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (m *Manager) applyGitConfig(cfg *Config) error {
	if m.git == nil {
		return nil
	}

	values, err := m.git.ConfigValues(GitKeyEnabled, GitKeyAutoupdate, GitKeyGCResolved, GitKeyGCUnresolved, GitKeyMarkerSize)
	if err != nil {
		return err
	}

	var errs []error
	if v, ok := values[GitKeyEnabled]; ok {
		b, err := ParseGitBool(v)
		errs = append(errs, wrapKey(GitKeyEnabled, err))
		if err == nil {
			cfg.Rerere.Enabled = b
		}
	}
	if v, ok := values[GitKeyAutoupdate]; ok {
		b, err := ParseGitBool(v)
		errs = append(errs, wrapKey(GitKeyAutoupdate, err))
		if err == nil {
			cfg.Rerere.Autoupdate = b
		}
	}
	if v, ok := values[GitKeyGCResolved]; ok {
		e, err := ParseExpiry(v)
		errs = append(errs, wrapKey(GitKeyGCResolved, err))
		if err == nil {
			cfg.GC.Resolved = e
		}
	}
	if v, ok := values[GitKeyGCUnresolved]; ok {
		e, err := ParseExpiry(v)
		errs = append(errs, wrapKey(GitKeyGCUnresolved, err))
		if err == nil {
			cfg.GC.Unresolved = e
		}
	}
	if v, ok := values[GitKeyMarkerSize]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		errs = append(errs, wrapKey(GitKeyMarkerSize, err))
		if err == nil {
			cfg.Rerere.MarkerSize = n
		}
	}

	return errors.Join(errs...)
}

func wrapKey(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}

func (m *Manager) applyEnvironment(cfg *Config) {
	if v := os.Getenv("RERERE_AUTOUPDATE"); v != "" {
		if b, err := ParseGitBool(v); err == nil {
			cfg.Rerere.Autoupdate = b
		}
	}
	if v := os.Getenv("RERERE_CACHE_DIR"); v != "" {
		cfg.Rerere.CacheDir = v
	}
	if v := os.Getenv("RERERE_GC_RESOLVED"); v != "" {
		if e, err := ParseExpiry(v); err == nil {
			cfg.GC.Resolved = e
		}
	}
	if v := os.Getenv("RERERE_GC_UNRESOLVED"); v != "" {
		if e, err := ParseExpiry(v); err == nil {
			cfg.GC.Unresolved = e
		}
	}
	if v := os.Getenv("RERERE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate reports settings no component can work with.
func (c *Config) Validate() error {
	if c.Rerere.MarkerSize < 1 {
		return fmt.Errorf("rerere.marker_size must be positive, got %d", c.Rerere.MarkerSize)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ParseGitBool parses a boolean the way git config does. An empty value,
// as written by a bare "key" line, is true.
func ParseGitBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}
