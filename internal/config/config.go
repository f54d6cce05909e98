// Package config loads catalogsearch configuration from YAML files and
// CATALOGSEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shopfront/catalogsearch/internal/cache"
	"github.com/shopfront/catalogsearch/internal/errors"
	"github.com/shopfront/catalogsearch/internal/search"
)

// ProjectFile is the per-directory config file name.
const ProjectFile = ".catalogsearch.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CATALOGSEARCH_"

// Config is the complete catalogsearch configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Sync    SyncConfig    `yaml:"sync" json:"sync"`
}

// IndexConfig locates the search index.
type IndexConfig struct {
	// Path is the index directory. Empty keeps the index in memory.
	Path string `yaml:"path" json:"path"`
	// RecoverCorrupt clears an unreadable index instead of failing to open.
	// A reindex is then required.
	RecoverCorrupt bool `yaml:"recover_corrupt" json:"recover_corrupt"`
}

// SearchConfig tunes paging.
type SearchConfig struct {
	// Slack is how many extra hits are fetched past skip+limit so that
	// filtering still fills the page.
	Slack        int  `yaml:"slack" json:"slack"`
	DefaultLimit int  `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int  `yaml:"max_limit" json:"max_limit"`
	Insights     bool `yaml:"insights" json:"insights"`
}

// CacheConfig configures the read-through result cache.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	AbsoluteTTL time.Duration `yaml:"absolute_ttl" json:"absolute_ttl"`
	SlidingTTL  time.Duration `yaml:"sliding_ttl" json:"sliding_ttl"`
	Capacity    int           `yaml:"capacity" json:"capacity"`
}

// CatalogConfig locates the primary store.
type CatalogConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// SyncConfig is the retry policy for index writes made after a catalog
// mutation.
type SyncConfig struct {
	Retries    int           `yaml:"retries" json:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	data := DataDir()
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Path: filepath.Join(data, "index"),
		},
		Search: SearchConfig{
			Slack:        search.DefaultSlack,
			DefaultLimit: search.DefaultLimit,
			MaxLimit:     search.MaxLimit,
			Insights:     true,
		},
		Cache: CacheConfig{
			Enabled:     true,
			AbsoluteTTL: cache.DefaultAbsoluteTTL,
			SlidingTTL:  cache.DefaultSlidingTTL,
			Capacity:    cache.DefaultCapacity,
		},
		Catalog: CatalogConfig{
			Path: filepath.Join(data, "catalog.db"),
		},
		Server: ServerConfig{
			Addr:            ":8080",
			LogLevel:        "info",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Sync: SyncConfig{
			Retries:    2,
			RetryDelay: 50 * time.Millisecond,
		},
	}
}

// DataDir returns ~/.catalogsearch, the default home of the index and
// catalog.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".catalogsearch")
	}
	return filepath.Join(home, ".catalogsearch")
}

// GetUserConfigPath returns the user config file path:
//   - $XDG_CONFIG_HOME/catalogsearch/config.yaml when XDG_CONFIG_HOME is set
//   - ~/.config/catalogsearch/config.yaml otherwise
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "catalogsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "catalogsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "catalogsearch", "config.yaml")
}

// GetUserConfigDir returns the directory holding the user config.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration in order of increasing precedence:
//  1. defaults
//  2. user config (GetUserConfigPath)
//  3. project config (.catalogsearch.yaml in dir)
//  4. explicit file, when explicit is not empty
//  5. CATALOGSEARCH_* environment variables
//
// The result is validated.
func Load(dir, explicit string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if path := filepath.Join(dir, ProjectFile); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if explicit != "" {
		if !fileExists(explicit) {
			return nil, errors.New(errors.ErrCodeConfigNotFound, "config file not found: "+explicit, nil).
				WithDetail("path", explicit)
		}
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.Index.Path = ExpandHome(cfg.Index.Path)
	cfg.Catalog.Path = ExpandHome(cfg.Catalog.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML overlays the keys present in path onto c. A copy is decoded
// first so a parse error leaves c unchanged.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigError("failed to read config file "+path, err)
	}

	next := *c
	if err := yaml.Unmarshal(data, &next); err != nil {
		return errors.ConfigError("failed to parse config file "+path, err).WithDetail("path", path)
	}
	*c = next
	return nil
}

// applyEnvOverrides applies CATALOGSEARCH_* variables.
func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"INDEX_PATH":   &c.Index.Path,
		"CATALOG_PATH": &c.Catalog.Path,
		"ADDR":         &c.Server.Addr,
		"LOG_LEVEL":    &c.Server.LogLevel,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SEARCH_SLACK":   &c.Search.Slack,
		"CACHE_CAPACITY": &c.Cache.Capacity,
		"SYNC_RETRIES":   &c.Sync.Retries,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return envError(key, v, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"CACHE_ENABLED":         &c.Cache.Enabled,
		"INDEX_RECOVER_CORRUPT": &c.Index.RecoverCorrupt,
		"SEARCH_INSIGHTS":       &c.Search.Insights,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return envError(key, v, err)
			}
			*dst = b
		}
	}

	durations := map[string]*time.Duration{
		"CACHE_ABSOLUTE_TTL": &c.Cache.AbsoluteTTL,
		"CACHE_SLIDING_TTL":  &c.Cache.SlidingTTL,
	}
	for key, dst := range durations {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return envError(key, v, err)
			}
			*dst = d
		}
	}
	return nil
}

func envError(key, value string, cause error) error {
	return errors.ConfigError(fmt.Sprintf("invalid %s%s=%q", EnvPrefix, key, value), cause)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	if c.Search.Slack < 0 {
		return invalid("search.slack must be non-negative, got %d", c.Search.Slack)
	}
	if c.Search.MaxLimit < 1 {
		return invalid("search.max_limit must be at least 1, got %d", c.Search.MaxLimit)
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return invalid("search.default_limit must be between 1 and %d, got %d", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Cache.AbsoluteTTL < 0 || c.Cache.SlidingTTL < 0 {
		return invalid("cache TTLs must be non-negative")
	}
	if c.Cache.Enabled && c.Cache.Capacity < 1 {
		return invalid("cache.capacity must be at least 1 when the cache is enabled, got %d", c.Cache.Capacity)
	}
	if c.Sync.Retries < 0 {
		return invalid("sync.retries must be non-negative, got %d", c.Sync.Retries)
	}
	if c.Sync.RetryDelay < 0 {
		return invalid("sync.retry_delay must be non-negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return invalid("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// SearchService returns the paging settings for search.NewService.
func (c *Config) SearchService() search.Config {
	return search.Config{
		Slack:        c.Search.Slack,
		DefaultLimit: c.Search.DefaultLimit,
		MaxLimit:     c.Search.MaxLimit,
	}
}

// ResultCache returns the cache settings, or nil when the cache is disabled.
func (c *Config) ResultCache() *cache.Config {
	if !c.Cache.Enabled {
		return nil
	}
	return &cache.Config{
		AbsoluteTTL: c.Cache.AbsoluteTTL,
		SlidingTTL:  c.Cache.SlidingTTL,
		Capacity:    c.Cache.Capacity,
	}
}

// Retry returns the index sync retry policy.
func (c *Config) Retry() errors.RetryConfig {
	r := errors.DefaultRetryConfig()
	r.MaxRetries = c.Sync.Retries
	if c.Sync.RetryDelay > 0 {
		r.InitialDelay = c.Sync.RetryDelay
		r.MaxDelay = max(r.MaxDelay, c.Sync.RetryDelay)
	}
	return r
}

// WriteYAML writes the configuration to path, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
