// Package gotrue is a client for GoTrue-compatible authentication services.
package gotrue

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/gotrue-go/pkg/httpclient"
)

const (
	// DefaultBaseURL is where a locally started GoTrue listens.
	DefaultBaseURL = "http://0.0.0.0:9999"

	defaultTimeout = 10 * time.Second
)

// Config is the process-wide client configuration. It is captured once by New.
type Config struct {
	BaseURL string
	// AccessToken is the default bearer token, typically a service key.
	// Operations acting on behalf of a user take the user's JWT explicitly.
	AccessToken string
}

// Logger defines the logging surface the client relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(t httpclient.Client) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// Client talks to a GoTrue service. It holds no mutable state and is safe for concurrent use.
type Client struct {
	baseURL      *url.URL
	defaultToken string
	transport    httpclient.Client
	log          Logger
}

// New validates cfg and builds a Client. An empty BaseURL falls back to DefaultBaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, errors.New("base url has no host")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL:      u,
		defaultToken: cfg.AccessToken,
		transport:    httpclient.NewRestyClient(defaultTimeout),
		log:          noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// BaseURL returns the normalized service URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}
