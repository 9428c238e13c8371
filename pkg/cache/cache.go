// Package cache implements the shared provider cache: a single
// JSON-backed file holding one opaque section per provider, lazily
// loaded, guarded for concurrent readers with serialized writers, and
// persisted atomically. Section reads are snapshot-isolated: a reader
// unmarshals its own copy and never observes a partially written entry.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

type contents struct {
	// Generation changes on every persisted write. Two resolutions
	// produced at the same generation are interchangeable.
	Generation uuid.UUID                  `json:"generation"`
	Sections   map[string]json.RawMessage `json:"sections"`
}

// Cache is the shareable handle passed into every provider operation.
// Copy the pointer freely; the zero value is not usable, use Open.
// Mutable
type Cache struct {
	mu     sync.RWMutex
	path   string
	data   contents
	loaded bool
	dirty  bool
}

// Open returns a handle over the cache file at path. The file is not
// read until first use and is created on first Save if missing.
func Open(path string) *Cache {
	return &Cache{path: path}
}

// Generation returns the current cache generation, loading the file if
// needed.
func (c *Cache) Generation() (uuid.UUID, error) {
	if err := c.ensureLoaded(); err != nil {
		return uuid.Nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Generation, nil
}

// Get unmarshals the named section into a fresh T. A missing section
// yields the zero value. The returned value is owned by the caller; it
// is a snapshot, not a live view.
func Get[T any](c *Cache, section string) (T, error) {
	var v T
	if err := c.ensureLoaded(); err != nil {
		return v, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.data.Sections[section]
	if !ok {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("corrupt cache section %q: %w", section, err)
	}
	return v, nil
}

// Update applies fn to the named section under the writer lock and
// replaces the section wholesale, so concurrent readers see either the
// previous or the new state. The change is held in memory until Save.
func Update[T any](c *Cache, section string, fn func(*T) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		if err := c.loadLocked(); err != nil {
			return err
		}
	}

	var v T
	if raw, ok := c.data.Sections[section]; ok {
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("corrupt cache section %q: %w", section, err)
		}
	}
	if err := fn(&v); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache section %q: %w", section, err)
	}
	c.data.Sections[section] = raw
	c.dirty = true
	return nil
}

// Dirty reports whether there are unsaved changes.
func (c *Cache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// Save persists pending changes atomically (tmp file + rename) under a
// cross-process lock, stamping a new generation. A clean cache is a
// no-op.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}
	if !c.loaded {
		return errors.New("cache marked dirty before load")
	}

	unlock, err := lockFile(c.path)
	if err != nil {
		return err
	}
	defer unlock()

	c.data.Generation = uuid.New()

	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Reload discards unsaved changes and re-reads the file.
func (c *Cache) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.dirty = false
	c.data = contents{}
	return c.loadLocked()
}

func (c *Cache) ensureLoaded() error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	return c.loadLocked()
}

// loadLocked reads the cache file. Must hold the write lock.
func (c *Cache) loadLocked() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.data = contents{
				Generation: uuid.New(),
				Sections:   make(map[string]json.RawMessage),
			}
			c.loaded = true
			c.dirty = true
			return nil
		}
		return fmt.Errorf("reading cache: %w", err)
	}

	var parsed contents
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("corrupt cache file %s: %w", c.path, err)
	}
	if parsed.Sections == nil {
		parsed.Sections = make(map[string]json.RawMessage)
	}
	c.data = parsed
	c.loaded = true
	c.dirty = false
	return nil
}
