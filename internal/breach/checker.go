package breach

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raysh454/cyberguard/internal/logging"
	"github.com/raysh454/cyberguard/internal/utils"
	"github.com/raysh454/cyberguard/internal/webclient"
)

const DefaultBaseURL = "https://haveibeenpwned.com/api/v3"

// Config configures the remote lookup. With an empty APIKey the remote
// service is not contacted and every result comes from the local catalog.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
}

// Checker answers breach checks. It is safe for concurrent use.
type Checker struct {
	cfg     Config
	client  webclient.WebClient
	cache   Cache
	catalog *Catalog
	logger  logging.Logger
	now     func() time.Time
}

// Option customizes a Checker.
type Option func(*Checker)

// WithCache enables result caching.
func WithCache(c Cache) Option { return func(ck *Checker) { ck.cache = c } }

// WithCatalog replaces the default local catalog.
func WithCatalog(c *Catalog) Option { return func(ck *Checker) { ck.catalog = c } }

// WithClock overrides the time source used for CheckedAt.
func WithClock(now func() time.Time) Option { return func(ck *Checker) { ck.now = now } }

// NewChecker builds a Checker. client may be nil when no API key is configured.
func NewChecker(cfg Config, client webclient.WebClient, logger logging.Logger, opts ...Option) *Checker {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = webclient.DefaultUserAgent
	}
	c := &Checker{
		cfg:     cfg,
		client:  client,
		catalog: DefaultCatalog(),
		logger:  logger.With(logging.Field{Key: "component", Value: "breach"}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemoteEnabled reports whether lookups go to the remote service first.
func (c *Checker) RemoteEnabled() bool {
	return c.cfg.APIKey != "" && c.client != nil
}

// Check looks up email. It only fails for an invalid address or a canceled
// context; remote failures fall back to the local catalog.
func (c *Checker) Check(ctx context.Context, email string) (*Report, error) {
	if !utils.ValidEmail(email) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	key := utils.NormalizeEmail(email)

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("breach cache read failed", logging.Field{Key: "error", Value: err})
		} else if ok {
			cached.Cached = true
			return cached, nil
		}
	}

	var report *Report
	if c.RemoteEnabled() {
		breaches, err := c.lookupRemote(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn("remote breach lookup failed, using local catalog",
				logging.Field{Key: "error", Value: err})
			report = newReport(key, c.catalog.Lookup(key), SourceLocal, c.now())
			report.FallbackReason = err.Error()
			// Fallback results are never cached.
			return report, nil
		}
		report = newReport(key, breaches, SourceRemote, c.now())
	} else {
		report = newReport(key, c.catalog.Lookup(key), SourceLocal, c.now())
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, report); err != nil {
			c.logger.Warn("breach cache write failed", logging.Field{Key: "error", Value: err})
		}
	}
	c.logger.Info("breach check complete",
		logging.Field{Key: "source", Value: string(report.Source)},
		logging.Field{Key: "breaches", Value: len(report.Breaches)})
	return report, nil
}

// lookupRemote queries GET {base}/breachedaccount/{email}. A 404 means the
// address is in no breach. Every other failure wraps ErrServiceUnavailable.
func (c *Checker) lookupRemote(ctx context.Context, email string) ([]Breach, error) {
	hdrs := http.Header{}
	hdrs.Set("hibp-api-key", c.cfg.APIKey)
	hdrs.Set("User-Agent", c.cfg.UserAgent)
	hdrs.Set("Accept", "application/json")

	endpoint := fmt.Sprintf("%s/breachedaccount/%s?truncateResponse=false", c.cfg.BaseURL, url.PathEscape(email))
	resp, err := c.client.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: endpoint, Headers: hdrs})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []Breach{}, nil
	case !resp.OK():
		return nil, fmt.Errorf("%w: unexpected status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var breaches []Breach
	if err := json.Unmarshal(resp.Body, &breaches); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrServiceUnavailable, err)
	}
	return breaches, nil
}
