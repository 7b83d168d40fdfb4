// ABOUTME: Periodize configuration: storage backend, remote, identity and auto-sync interval.
// ABOUTME: Factory functions open the configured local store and remote adapter.

package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/periodize/internal/remote"
	"github.com/harperreed/periodize/internal/storage"
	"github.com/harperreed/periodize/internal/sync"
	"github.com/joho/godotenv"
)

// Environment overrides, read after .env files are loaded.
const (
	EnvRemoteURL = "PERIODIZE_REMOTE_URL"
	EnvAPIKey    = "PERIODIZE_API_KEY"
	EnvUserID    = "PERIODIZE_USER_ID"
)

// Config stores periodize configuration.
type Config struct {
	// Backend selects the local store: "sqlite" (default), "kv" (badger) or "charm".
	Backend string `json:"backend,omitempty"`

	// DataDir is the root directory for local data. SQLite puts periodize.db
	// here, the kv backend a badger directory named kv.
	// Supports ~ expansion. Defaults to ~/.local/share/periodize.
	DataDir string `json:"data_dir,omitempty"`

	// UserID is the signed-in user. Empty means signed out.
	UserID string `json:"user_id,omitempty"`

	Remote   *RemoteConfig   `json:"remote,omitempty"`
	AutoSync *AutoSyncConfig `json:"auto_sync,omitempty"`

	LogLevel string `json:"log_level,omitempty"`
}

// RemoteConfig points at the shared backend.
type RemoteConfig struct {
	// Kind is "rest" (PostgREST-style HTTP, default) or "sql" (a SQLite file).
	Kind   string `json:"kind,omitempty"`
	URL    string `json:"url,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

// AutoSyncConfig is persisted and reloaded at start.
type AutoSyncConfig struct {
	IntervalMinutes int `json:"interval_minutes,omitempty"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return "sqlite"
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetUserID returns the user id, preferring the environment.
func (c *Config) GetUserID() string {
	if v := os.Getenv(EnvUserID); v != "" {
		return v
	}
	return c.UserID
}

// GetRemote returns the remote settings with environment overrides applied.
// The result is a copy; nil when no remote is configured anywhere.
func (c *Config) GetRemote() *RemoteConfig {
	var r RemoteConfig
	if c.Remote != nil {
		r = *c.Remote
	}
	if v := os.Getenv(EnvRemoteURL); v != "" {
		r.URL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		r.APIKey = v
	}
	if r.URL == "" {
		return nil
	}
	if r.Kind == "" {
		r.Kind = "rest"
	}
	return &r
}

// GetInterval returns the auto-sync interval in minutes, defaulting to 15.
func (c *Config) GetInterval() int {
	if c.AutoSync == nil || c.AutoSync.IntervalMinutes == 0 {
		return sync.DefaultInterval
	}
	return c.AutoSync.IntervalMinutes
}

// SetInterval validates and stores the interval.
func (c *Config) SetInterval(minutes int) error {
	if !sync.ValidInterval(minutes) {
		return fmt.Errorf("invalid interval %d: must be one of %v", minutes, sync.ValidIntervals)
	}
	if c.AutoSync == nil {
		c.AutoSync = &AutoSyncConfig{}
	}
	c.AutoSync.IntervalMinutes = minutes
	return nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.GetBackend() {
	case "sqlite", "kv", "charm":
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if r := c.GetRemote(); r != nil && r.Kind != "rest" && r.Kind != "sql" {
		return fmt.Errorf("unknown remote kind: %q", r.Kind)
	}
	if c.AutoSync != nil && c.AutoSync.IntervalMinutes != 0 && !sync.ValidInterval(c.AutoSync.IntervalMinutes) {
		return fmt.Errorf("invalid interval %d: must be one of %v", c.AutoSync.IntervalMinutes, sync.ValidIntervals)
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage opens the local store for the configured backend.
func (c *Config) OpenStorage() (*storage.Store, error) {
	dataDir := c.GetDataDir()

	var backend storage.Backend
	var err error
	switch c.GetBackend() {
	case "sqlite":
		backend, err = storage.Open(filepath.Join(dataDir, "periodize.db"))
	case "kv":
		backend, err = storage.OpenKV(filepath.Join(dataDir, "kv"))
	case "charm":
		backend, err = storage.OpenCharmKV()
	default:
		return nil, fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if err != nil {
		return nil, err
	}
	return storage.NewStore(backend), nil
}

// OpenRemote opens the configured remote adapter. The closer releases any
// resources the adapter holds and is never nil.
func (c *Config) OpenRemote() (remote.Remote, io.Closer, error) {
	r := c.GetRemote()
	if r == nil {
		return nil, nil, fmt.Errorf("no remote configured (set remote.url in %s or %s)", GetConfigPath(), EnvRemoteURL)
	}
	switch r.Kind {
	case "rest":
		return remote.NewRESTClient(r.URL, r.APIKey), nopCloser{}, nil
	case "sql":
		db, err := remote.OpenSQL(ExpandPath(r.URL))
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	}
	return nil, nil, fmt.Errorf("unknown remote kind: %q", r.Kind)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// GetConfigDir returns the periodize config directory.
func GetConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "periodize")
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.json")
}

// LoadEnv loads .env from the config directory and the working directory.
// Existing environment variables win; missing files are ignored.
func LoadEnv() {
	_ = godotenv.Load(filepath.Join(GetConfigDir(), ".env"))
	_ = godotenv.Load()
}

// Load reads config from disk.
func Load() (*Config, error) {
	return LoadFile(GetConfigPath())
}

// LoadFile reads config from path. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
