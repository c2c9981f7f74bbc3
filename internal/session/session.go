// Package session caches sessions obtained by the CLI between invocations.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/gotrue-go/pkg/gotrue"
)

// Store persists sessions by profile name.
type Store interface {
	Close() error
	Save(name string, s gotrue.Session) (Entry, error)
	Load(name string) (Entry, bool, error)
	Delete(name string) error
}

// Entry is a cached session plus bookkeeping. ExpiresAt is when the access token stops
// working; the entry itself is kept until RetainUntil so its refresh token stays usable.
type Entry struct {
	Name        string         `json:"name"`
	Session     gotrue.Session `json:"session"`
	SavedAt     time.Time      `json:"saved_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	RetainUntil time.Time      `json:"retain_until"`
}

// Expired reports whether the access token is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Stale reports whether the entry is past its retention at now and can be dropped.
func (e Entry) Stale(now time.Time) bool {
	return !e.RetainUntil.After(now)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	// DefaultTTL applies when neither expires_in nor the token's exp claim is usable.
	DefaultTTL time.Duration
	// Retention is how long an entry outlives its save, for refreshing expired access tokens.
	Retention       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultSessionTTL      = time.Hour
	defaultRetention       = 30 * 24 * time.Hour
	defaultCleanupInterval = 6 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt session store requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported session store type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = defaultSessionTTL
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error { return nil }
func (noopStore) Save(name string, s gotrue.Session) (Entry, error) {
	return Entry{Name: name, Session: s}, nil
}
func (noopStore) Load(string) (Entry, bool, error) { return Entry{}, false, nil }
func (noopStore) Delete(string) error              { return nil }
