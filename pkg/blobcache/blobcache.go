// Package blobcache is a content-addressed store for fetched artifact
// bytes. Blobs are keyed by the sha256 of their content and laid out in
// two-character shard directories. Writes stream through a temp file and
// land with an atomic rename, so concurrent writers of the same content
// converge on one blob instead of corrupting each other.
package blobcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Cache is a blob store rooted at a single directory. The handle is
// shareable; all methods are safe for concurrent use.
// Immutable
type Cache struct {
	root string
}

// New returns a store rooted at dir. The directory is created on first
// write.
func New(dir string) *Cache {
	return &Cache{root: dir}
}

// Path returns where the blob with the given hash lives (or would
// live). It does not check existence.
func (c *Cache) Path(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(c.root, hash)
	}
	return filepath.Join(c.root, hash[:2], hash)
}

// Has reports whether a blob with the given hash is present, returning
// its path when it is.
func (c *Cache) Has(hash string) (string, bool) {
	if hash == "" {
		return "", false
	}
	path := c.Path(hash)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Store streams r into the cache, hashing as it writes, and returns the
// content hash and final blob path. If a blob with the same content
// already exists the rename simply replaces it with identical bytes.
func (c *Cache) Store(r io.Reader) (hash string, path string, err error) {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return "", "", fmt.Errorf("creating blob root: %w", err)
	}

	tmp, err := os.CreateTemp(c.root, "blob-*.partial")
	if err != nil {
		return "", "", fmt.Errorf("creating blob temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	if _, err = io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		return "", "", err
	}
	if err = tmp.Sync(); err != nil {
		return "", "", fmt.Errorf("syncing blob: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", "", fmt.Errorf("closing blob: %w", err)
	}

	hash = hex.EncodeToString(h.Sum(nil))
	path = c.Path(hash)
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", "", fmt.Errorf("creating blob shard: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", "", fmt.Errorf("placing blob: %w", err)
	}
	return hash, path, nil
}

// StoreFile is Store over the contents of an existing local file.
func (c *Cache) StoreFile(src string) (string, string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	return c.Store(f)
}

// Trim removes every blob whose hash is not in keep. Used by callers
// that garbage-collect artifacts no longer referenced by any cache
// entry.
func (c *Cache) Trim(keep map[string]bool) error {
	entries, err := os.ReadDir(c.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		blobs, err := os.ReadDir(filepath.Join(c.root, shard.Name()))
		if err != nil {
			return err
		}
		for _, b := range blobs {
			if !keep[b.Name()] {
				if err := os.Remove(filepath.Join(c.root, shard.Name(), b.Name())); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
