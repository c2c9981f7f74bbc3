package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files, environment variables and flags.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	BaseURL            string        `mapstructure:"gotrue_url"`
	AccessToken        string        `mapstructure:"gotrue_access_token"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	SessionStore             string        `mapstructure:"session_store"`
	SessionPath              string        `mapstructure:"session_path"`
	SessionDefaultTTLSeconds int64         `mapstructure:"session_default_ttl_seconds"`
	SessionCleanupSeconds    int64         `mapstructure:"session_cleanup_interval_seconds"`
	SessionRetentionSeconds  int64         `mapstructure:"session_retention_seconds"`
	SessionDefaultTTL        time.Duration `mapstructure:"-"`
	SessionCleanupInterval   time.Duration `mapstructure:"-"`
	SessionRetention         time.Duration `mapstructure:"-"`

	EventsFile string `mapstructure:"events_file"`
}

// flagKeys maps global CLI flags onto config keys.
var flagKeys = map[string]string{
	"url":          "gotrue_url",
	"token":        "gotrue_access_token",
	"log-level":    "log_level",
	"session-path": "session_path",
	"events-file":  "events_file",
}

// RegisterFlags declares the global flags Load understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("url", "", "GoTrue base URL (env GOTRUE_URL)")
	fs.String("token", "", "default bearer token, e.g. a service key (env GOTRUE_ACCESS_TOKEN)")
	fs.String("log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	fs.String("session-path", "", "session cache file (env SESSION_PATH)")
	fs.String("events-file", "", "audit event publishers file (env EVENTS_FILE)")
}

// Load reads configuration from environment variables and config files.
// Flags in fs that were set explicitly take precedence over the environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "gotrue-go")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("gotrue_url", "http://0.0.0.0:9999")
	v.SetDefault("gotrue_access_token", "")
	v.SetDefault("http_timeout_seconds", 10)
	v.SetDefault("session_store", "bbolt")
	v.SetDefault("session_path", "./data/sessions.db")
	v.SetDefault("session_default_ttl_seconds", int64(time.Hour/time.Second))
	v.SetDefault("session_cleanup_interval_seconds", int64((6*time.Hour)/time.Second))
	v.SetDefault("session_retention_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("events_file", "")

	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid gotrue_url %q (must be an absolute http(s) URL)", cfg.BaseURL)
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.SessionDefaultTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid session_default_ttl_seconds (must be positive seconds)")
	}
	if cfg.SessionCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid session_cleanup_interval_seconds (must be positive seconds)")
	}
	if cfg.SessionRetentionSeconds <= 0 {
		return nil, fmt.Errorf("invalid session_retention_seconds (must be positive seconds)")
	}
	cfg.SessionDefaultTTL = time.Duration(cfg.SessionDefaultTTLSeconds) * time.Second
	cfg.SessionCleanupInterval = time.Duration(cfg.SessionCleanupSeconds) * time.Second
	cfg.SessionRetention = time.Duration(cfg.SessionRetentionSeconds) * time.Second

	return &cfg, nil
}

// Redacted returns a copy safe for logging.
func (c Config) Redacted() Config {
	if c.AccessToken != "" {
		c.AccessToken = "[redacted]"
	}
	return c
}
