package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"schedsync/internal/category"
	"schedsync/internal/event"
)

// RemoteConfig describes the scheduling service endpoint.
type RemoteConfig struct {
	// BaseURL is the service root, e.g. "https://sched.example.com".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Timeout bounds each HTTP round trip.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	ListPath   string `yaml:"list_path" json:"list_path"`
	CreatePath string `yaml:"create_path" json:"create_path"`
	UpdatePath string `yaml:"update_path" json:"update_path"`
	DeletePath string `yaml:"delete_path" json:"delete_path"`

	// Headers are sent with every request (session cookie, API key, ...).
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	Remote RemoteConfig `yaml:"remote" json:"remote"`

	// UserID is the default owner id for fetch/export/watch.
	UserID string `yaml:"user_id" json:"user_id"`

	// Listen is the HTTP listen address of the local read-only view.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used by watch/serve for periodic resync.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Timezone is the IANA zone used when exporting to iCalendar.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// CategoryPreset selects a built-in category set ("schedule" or
	// "calendar"). Ignored when Categories is non-empty.
	CategoryPreset string              `yaml:"category_preset" json:"category_preset"`
	Categories     []category.Category `yaml:"categories,omitempty" json:"categories,omitempty"`

	// Fields overrides the wire -> local rename table.
	Fields event.FieldMap `yaml:"fields,omitempty" json:"fields,omitempty"`

	// LegacyAddPolicy swallows create-event failures instead of returning
	// them.
	LegacyAddPolicy bool `yaml:"legacy_add_policy" json:"legacy_add_policy"`
}

// envOverrides are applied on top of the file. Unset variables leave the
// file value alone.
type envOverrides struct {
	BaseURL     string        `env:"SCHEDSYNC_BASE_URL"`
	Timeout     time.Duration `env:"SCHEDSYNC_TIMEOUT"`
	UserID      string        `env:"SCHEDSYNC_USER_ID"`
	Listen      string        `env:"SCHEDSYNC_LISTEN"`
	RefreshCron string        `env:"SCHEDSYNC_REFRESH"`
	LogLevel    string        `env:"SCHEDSYNC_LOG_LEVEL"`
	Cookie      string        `env:"SCHEDSYNC_COOKIE"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:    "http://127.0.0.1:8080",
			Timeout:    15 * time.Second,
			ListPath:   "/sch/seleteAll.do",
			CreatePath: "/sch/insert.do",
			UpdatePath: "/sch/update.do",
			DeletePath: "/sch/delete.do",
		},
		Listen:         "127.0.0.1:8090",
		RefreshCron:    "*/15 * * * *",
		Timezone:       "Asia/Seoul",
		LogLevel:       "info",
		LogFormat:      "text",
		CategoryPreset: category.PresetSchedule,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = def.Remote.BaseURL
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = def.Remote.Timeout
	}
	if c.Remote.ListPath == "" {
		c.Remote.ListPath = def.Remote.ListPath
	}
	if c.Remote.CreatePath == "" {
		c.Remote.CreatePath = def.Remote.CreatePath
	}
	if c.Remote.UpdatePath == "" {
		c.Remote.UpdatePath = def.Remote.UpdatePath
	}
	if c.Remote.DeletePath == "" {
		c.Remote.DeletePath = def.Remote.DeletePath
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		c.LogFormat = def.LogFormat
	}
	if c.CategoryPreset == "" {
		c.CategoryPreset = def.CategoryPreset
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid remote.base_url %q", c.Remote.BaseURL)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: invalid refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Fields != nil {
		if err := c.Fields.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// Registry builds the category registry this config describes.
func (c *Config) Registry() (*category.Registry, error) {
	if len(c.Categories) > 0 {
		return category.New(c.Categories)
	}
	return category.Preset(c.CategoryPreset)
}

// FieldMap returns the configured rename table, or the default one.
func (c *Config) FieldMap() event.FieldMap {
	if len(c.Fields) == 0 {
		return event.DefaultFieldMap()
	}
	return c.Fields
}

// ApplyEnv overlays SCHEDSYNC_* environment variables.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.BaseURL != "" {
		c.Remote.BaseURL = o.BaseURL
	}
	if o.Timeout > 0 {
		c.Remote.Timeout = o.Timeout
	}
	if o.UserID != "" {
		c.UserID = o.UserID
	}
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.RefreshCron != "" {
		c.RefreshCron = o.RefreshCron
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.Cookie != "" {
		if c.Remote.Headers == nil {
			c.Remote.Headers = map[string]string{}
		}
		c.Remote.Headers["Cookie"] = o.Cookie
	}
	return nil
}

// Load loads configuration from the given YAML path, then applies
// environment overrides and validates the result.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and used.
//   - If the file exists, it is unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".schedsync-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
