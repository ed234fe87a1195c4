package server

import "time"

const (
	DefaultListenAddr   = ":8080"
	DefaultCookieName   = "cyberguard_session"
	DefaultMaxBodyBytes = 1 << 20
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string `yaml:"listen_addr"`
	// AllowedOrigins lists CORS and WebSocket origins. "*" allows any origin
	// but then browsers will not send the session cookie cross-site.
	AllowedOrigins []string `yaml:"allowed_origins"`
	CookieName     string   `yaml:"cookie_name"`
	// CookieSecure marks the session cookie Secure; enable behind TLS.
	CookieSecure bool          `yaml:"cookie_secure"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
}
