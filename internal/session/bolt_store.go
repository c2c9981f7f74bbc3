package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/gotrue-go/pkg/gotrue"
	bolt "go.etcd.io/bbolt"
)

const (
	sessionBucket  = "sessions"
	metaBucket     = "meta"
	lastCleanupKey = "last_cleanup"
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	defaultTTL      time.Duration
	retention       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (*boltStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	// The last sweep time lives in the meta bucket so it carries across processes.
	var lastCleanup int64
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionBucket)); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		if raw := meta.Get([]byte(lastCleanupKey)); raw != nil {
			lastCleanup, _ = strconv.ParseInt(string(raw), 10, 64)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		defaultTTL:      opts.DefaultTTL,
		retention:       opts.Retention,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(lastCleanup)
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Save stores s under name, replacing any previous session.
func (b *boltStore) Save(name string, s gotrue.Session) (Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, fmt.Errorf("session name is empty")
	}

	now := b.now()
	if err := b.maybeCleanupStale(now); err != nil {
		return Entry{}, err
	}

	expiresAt := ExpiresAt(s, now, b.defaultTTL)
	retainUntil := now.Add(b.retention)
	if expiresAt.After(retainUntil) {
		retainUntil = expiresAt
	}
	entry := Entry{
		Name:        name,
		Session:     s,
		SavedAt:     now.UTC(),
		ExpiresAt:   expiresAt.UTC(),
		RetainUntil: retainUntil.UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal session: %w", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket missing")
		}
		return bucket.Put([]byte(name), raw)
	})
	return entry, err
}

// Load returns the session saved under name, including entries whose access token has
// expired. Stale or unreadable entries are removed and reported as missing.
func (b *boltStore) Load(name string) (Entry, bool, error) {
	now := b.now()
	if err := b.maybeCleanupStale(now); err != nil {
		return Entry{}, false, err
	}

	var (
		entry Entry
		found bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket missing")
		}

		key := []byte(strings.TrimSpace(name))
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		decoded, ok := decodeEntry(value)
		if !ok || decoded.Stale(now) {
			return bucket.Delete(key)
		}
		entry, found = decoded, true
		return nil
	})
	return entry, found, err
}

// Delete removes the session saved under name. Missing names are not an error.
func (b *boltStore) Delete(name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket missing")
		}
		return bucket.Delete([]byte(strings.TrimSpace(name)))
	})
}

// maybeCleanupStale removes stale sessions once per cleanup interval.
func (b *boltStore) maybeCleanupStale(now time.Time) error {
	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket missing")
		}

		// Deleting through a cursor mid-iteration skips the following key.
		var stale [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			entry, ok := decodeEntry(v)
			if !ok || entry.Stale(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}

		meta := tx.Bucket([]byte(metaBucket))
		if meta == nil {
			return fmt.Errorf("meta bucket missing")
		}
		return meta.Put([]byte(lastCleanupKey), []byte(strconv.FormatInt(now.Unix(), 10)))
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func decodeEntry(value []byte) (Entry, bool) {
	var entry Entry
	if err := json.Unmarshal(value, &entry); err != nil || entry.ExpiresAt.IsZero() {
		return Entry{}, false
	}
	if entry.RetainUntil.IsZero() {
		entry.RetainUntil = entry.ExpiresAt
	}
	return entry, true
}
