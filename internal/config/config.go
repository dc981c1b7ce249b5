package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const DefaultGlamourStyle = "dark"

const DefaultRequestTimeout = 15 * time.Second

// AppConfig is resolved from defaults, then the TOML file, then SWIPEDESK_*
// environment variables, then command-line flags.
type AppConfig struct {
	URL            string        `toml:"url" env:"SWIPEDESK_URL"`
	AnonKey        string        `toml:"anon_key" env:"SWIPEDESK_ANON_KEY"`
	StateDB        string        `toml:"state_db" env:"SWIPEDESK_STATE_DB"`
	ExportDir      string        `toml:"export_dir" env:"SWIPEDESK_EXPORT_DIR"`
	RequestTimeout time.Duration `toml:"timeout" env:"SWIPEDESK_TIMEOUT"`
	LogFile        string        `toml:"log_file" env:"SWIPEDESK_LOG_FILE"`
	LogLevel       string        `toml:"log_level" env:"SWIPEDESK_LOG_LEVEL"`
	Demo           bool          `toml:"demo" env:"SWIPEDESK_DEMO"`

	ConfigPath string `toml:"-"`
}

// Overrides carries command-line values. Zero values mean "not set".
type Overrides struct {
	ConfigPath string
	URL        string
	AnonKey    string
	StateDB    string
	ExportDir  string
	LogFile    string
	LogLevel   string
	Timeout    time.Duration
	Demo       bool
}

func Load(o Overrides) (AppConfig, error) {
	cfg := AppConfig{RequestTimeout: DefaultRequestTimeout, LogLevel: "info"}

	path := o.ConfigPath
	explicit := path != ""
	if !explicit {
		if fromEnv := os.Getenv("SWIPEDESK_CONFIG"); fromEnv != "" {
			path = fromEnv
			explicit = true
		}
	}
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	if err := loadFile(path, &cfg, explicit); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = path

	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.apply(o)

	if err := cfg.resolvePaths(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv loads SWIPEDESK_* variables over target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func loadFile(path string, cfg *AppConfig, required bool) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) apply(o Overrides) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.URL, o.URL)
	set(&c.AnonKey, o.AnonKey)
	set(&c.StateDB, o.StateDB)
	set(&c.ExportDir, o.ExportDir)
	set(&c.LogFile, o.LogFile)
	set(&c.LogLevel, o.LogLevel)
	if o.Timeout > 0 {
		c.RequestTimeout = o.Timeout
	}
	if o.Demo {
		c.Demo = true
	}
}

func (c *AppConfig) resolvePaths() error {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")

	if c.StateDB == "" {
		dir, err := dataDir()
		if err != nil {
			return err
		}
		c.StateDB = filepath.Join(dir, "state.sqlite")
	}
	c.StateDB = expandHome(c.StateDB)
	if err := os.MkdirAll(filepath.Dir(c.StateDB), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	if c.LogFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		c.LogFile = filepath.Join(home, ".local", "state", "swipedesk", "swipedesk.log")
	}
	c.LogFile = expandHome(c.LogFile)
	c.ExportDir = expandHome(c.ExportDir)
	return nil
}

// Validate checks the settings every backend-facing command needs.
func (c AppConfig) Validate() error {
	if c.Demo {
		return nil
	}
	if c.URL == "" {
		return fmt.Errorf("backend url is not set (use --url, SWIPEDESK_URL or url in %s)", c.ConfigPath)
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend url %q is not an absolute http(s) url", c.URL)
	}
	if c.AnonKey == "" {
		return fmt.Errorf("anon key is not set (use --anon-key, SWIPEDESK_ANON_KEY or anon_key in %s)", c.ConfigPath)
	}
	return nil
}

func DefaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swipedesk", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "swipedesk", "config.toml"), nil
}

func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "swipedesk"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "swipedesk"), nil
}

func expandHome(p string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return filepath.Clean(p)
}
