package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes a single ICS timetable feed.
type SourceConfig struct {
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for cache keys and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Group, if set, assigns every lesson of the feed to this group.
	// Otherwise groups are taken from each event's CATEGORIES.
	Group string `yaml:"group,omitempty" json:"group,omitempty"`
}

// NotificationsConfig is the permission/policy input of the refresh orchestrator.
type NotificationsConfig struct {
	// Enabled mirrors the "schedule notifications" preference.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Permission reports whether the platform granted notification permission.
	Permission bool `yaml:"permission" json:"permission"`
}

// CaptureConfig controls preview PNG screenshots.
type CaptureConfig struct {
	Width   int           `yaml:"width" json:"width"`
	Height  int           `yaml:"height" json:"height"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the host surface.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the widget host surface.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone whose calendar decides "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/30 * * * *")
	// on which every placed widget instance is refreshed.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DataDir holds the instance database, the ICS cache and previews.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Locale selects widget labels. Supported values: "en" (default), "ru".
	Locale string `yaml:"locale" json:"locale"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// AppURL is where the tap-to-open action sends the user.
	AppURL string `yaml:"app_url" json:"app_url"`

	// DefaultGroup is the application's last saved group. Empty means none.
	DefaultGroup string `yaml:"default_group" json:"default_group"`

	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`

	// FallbackAfter renders a placeholder schedule when the repository has not
	// emitted within this duration. Zero disables the fallback.
	FallbackAfter time.Duration `yaml:"fallback_after" json:"fallback_after"`

	// Sources is the list of ICS timetable feeds.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Local",
		RefreshCron: "*/30 * * * *",
		DataDir:     "/var/lib/schedwidget",
		Locale:      "en",
		LogLevel:    "info",
		AppURL:      "/",
		Sources:     []SourceConfig{},
		Capture: CaptureConfig{
			Width:   400,
			Height:  400,
			Timeout: 30 * time.Second,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	switch c.Locale {
	case "en", "ru":
	default:
		// Unknown value; labels fall back to English.
		c.Locale = def.Locale
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.AppURL == "" {
		c.AppURL = def.AppURL
	}
	if c.FallbackAfter < 0 {
		c.FallbackAfter = 0
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			if c.Sources[i].Name != "" {
				c.Sources[i].ID = c.Sources[i].Name
			} else {
				c.Sources[i].ID = c.Sources[i].URL
			}
		}
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = def.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = def.Capture.Height
	}
	if c.Capture.Timeout <= 0 {
		c.Capture.Timeout = def.Capture.Timeout
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DBPath is the bbolt file holding per-instance configuration.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "instances.db")
}

// CacheDir is the ICS disk cache directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "ics-cache")
}

// PreviewDir holds captured widget previews.
func (c *Config) PreviewDir() string {
	return filepath.Join(c.DataDir, "previews")
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedwidget-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
