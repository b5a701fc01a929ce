package accounting

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	// MinRequestInterval is the smallest spacing allowed between two outbound calls (2 req/s)
	MinRequestInterval = 500 * time.Millisecond
	// DefaultTimeoutSeconds is the HTTP timeout used when none is configured
	DefaultTimeoutSeconds = 30
)

// Errors for accounting platform configuration
var (
	ErrConfigMissingBaseURL = errors.New("accounting: base url is required")
	ErrConfigInvalidBaseURL = errors.New("accounting: base url must be an absolute http(s) url")
	ErrConfigMissingAPIKey  = errors.New("accounting: api key is required")
)

// Config holds the connection settings of the accounting platform client
type Config struct {
	// BaseURL is the API root, without the /v1 path
	BaseURL string
	// APIKey is sent as a bearer token on every request
	APIKey string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// RequestInterval is the minimum spacing between calls; never below MinRequestInterval
	RequestInterval time.Duration
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrConfigInvalidBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrConfigMissingAPIKey
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.RequestInterval < MinRequestInterval {
		c.RequestInterval = MinRequestInterval
	}
	return nil
}
