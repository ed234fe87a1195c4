package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/cyberguard/internal/server"
	"github.com/raysh454/cyberguard/internal/session"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config is the runtime configuration. Precedence: flags > env > file > defaults.
type Config struct {
	Server  server.Config `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Rules   RulesConfig   `yaml:"rules"`
	Session SessionConfig `yaml:"session"`
	Breach  BreachConfig  `yaml:"breach"`
}

type LoggingConfig struct {
	// Level is debug|info|warn|error.
	Level string `yaml:"level"`
}

type RulesConfig struct {
	// Dir holds YAML rule packs that replace or extend the built-in ones.
	Dir string `yaml:"dir"`
}

type SessionConfig struct {
	Store         string               `yaml:"store"`
	DSN           string               `yaml:"dsn"`
	TTL           time.Duration        `yaml:"ttl"`
	RememberTTL   time.Duration        `yaml:"remember_ttl"`
	SweepInterval time.Duration        `yaml:"sweep_interval"`
	Policy        session.PolicyConfig `yaml:"policy"`
}

type BreachConfig struct {
	// APIKey enables the remote lookup. Empty means local catalog only.
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`
	Redis     RedisConfig   `yaml:"redis"`
}

// RedisConfig selects the Redis result cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: server.Config{
			ListenAddr:     server.DefaultListenAddr,
			AllowedOrigins: []string{"*"},
			CookieName:     server.DefaultCookieName,
			MaxBodyBytes:   server.DefaultMaxBodyBytes,
			ReadTimeout:    15 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Session: SessionConfig{
			Store:         StoreMemory,
			DSN:           "cyberguard.db",
			TTL:           session.DefaultTTL,
			RememberTTL:   session.DefaultRememberTTL,
			SweepInterval: 10 * time.Minute,
			Policy: session.PolicyConfig{
				DemoEmail:      session.DemoEmail,
				MinPasswordLen: session.DefaultMinPasswordLen,
			},
		},
		Breach: BreachConfig{
			Timeout:   10 * time.Second,
			CacheTTL:  time.Hour,
			CacheSize: 1024,
		},
	}
}

// LoadConfig reads the YAML file at path over DefaultConfig and then applies
// CYBERGUARD_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(b); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(b []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv applies environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("CYBERGUARD_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := getenv("CYBERGUARD_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
	if v := getenv("CYBERGUARD_COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CYBERGUARD_COOKIE_SECURE: %w", err)
		}
		c.Server.CookieSecure = b
	}
	if v := getenv("CYBERGUARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("CYBERGUARD_RULES_DIR"); v != "" {
		c.Rules.Dir = v
	}
	if v := getenv("CYBERGUARD_SESSION_STORE"); v != "" {
		c.Session.Store = v
	}
	if v := getenv("CYBERGUARD_SESSION_DSN"); v != "" {
		c.Session.DSN = v
	}
	if v := getenv("CYBERGUARD_DEMO_PASSWORD_HASH"); v != "" {
		c.Session.Policy.DemoPasswordHash = v
	}
	if v := getenv("CYBERGUARD_BREACH_API_KEY"); v != "" {
		c.Breach.APIKey = v
	}
	if v := getenv("CYBERGUARD_BREACH_BASE_URL"); v != "" {
		c.Breach.BaseURL = v
	}
	if v := getenv("CYBERGUARD_REDIS_ADDR"); v != "" {
		c.Breach.Redis.Addr = v
	}
	if v := getenv("CYBERGUARD_REDIS_PASSWORD"); v != "" {
		c.Breach.Redis.Password = v
	}
	return nil
}

// Validate rejects configurations the application cannot start with.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.Session.DSN == "" {
			return fmt.Errorf("session.dsn is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown session store %q (want %s or %s)", c.Session.Store, StoreMemory, StoreSQLite)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.Breach.CacheTTL <= 0 {
		return fmt.Errorf("breach.cache_ttl must be positive")
	}
	return nil
}
