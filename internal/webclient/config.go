package webclient

import "time"

// Config configures the net/http backed client.
type Config struct {
	// Timeout bounds a whole request including reading the body. Zero means 30s.
	Timeout time.Duration
	// UserAgent is sent when the request carries none.
	UserAgent string
	// MaxBodyBytes caps how much of a response body is read. Zero means 1 MiB.
	MaxBodyBytes int64
}

const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "cyberguard/1.0"
	DefaultMaxBodyBytes = 1 << 20
)
