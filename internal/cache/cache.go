// Package cache keeps parsed IR snapshots on disk, keyed by the digest of
// the source text they were parsed from.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"pcb/internal/irpack"
)

// Digest is the SHA-256 of a source file.
type Digest [sha256.Size]byte

// Sum hashes src. The schema version is mixed in so a layout change
// invalidates every entry.
func Sum(src []byte) Digest {
	h := sha256.New()
	h.Write([]byte{byte(irpack.SchemaVersion >> 8), byte(irpack.SchemaVersion)})
	h.Write(src)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Entry is one cached parse result.
type Entry struct {
	Source   string           `msgpack:"src"`
	Stored   time.Time        `msgpack:"at"`
	Snapshot *irpack.Snapshot `msgpack:"snap"`
}

// DiskCache is safe for concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Open uses $XDG_CACHE_HOME/app, falling back to ~/.cache/app.
func Open(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDir(filepath.Join(base, app))
}

// OpenDir uses dir directly.
func OpenDir(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "ir", key.String()+".mp")
}

// Put writes e atomically.
func (c *DiskCache) Put(key Digest, e *Entry) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()
	if e.Stored.IsZero() {
		e.Stored = time.Now().UTC()
	}
	if err := msgpack.NewEncoder(f).Encode(e); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads the entry for key. A missing entry is (false, nil); an entry
// from another schema is dropped and reported missing.
func (c *DiskCache) Get(key Digest) (*Entry, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var e Entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return nil, false, err
	}
	if e.Snapshot == nil || e.Snapshot.Schema != irpack.SchemaVersion {
		return nil, false, nil
	}
	return &e, true, nil
}

// DropAll removes every entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
