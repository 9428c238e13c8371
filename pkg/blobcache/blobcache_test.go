package blobcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestStoreAndHas(t *testing.T) {
	c := New(t.TempDir())
	content := []byte("mod artifact bytes")

	hash, path, err := c.Store(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	want := sha256.Sum256(content)
	if hash != hex.EncodeToString(want[:]) {
		t.Errorf("hash mismatch: got %s", hash)
	}
	if !strings.HasSuffix(filepath.Dir(path), hash[:2]) {
		t.Errorf("blob not placed in its shard: %s", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading blob back failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("blob content mismatch")
	}

	if p, ok := c.Has(hash); !ok || p != path {
		t.Errorf("Has(%s) = (%s, %t)", hash, p, ok)
	}
	if _, ok := c.Has("feedfeed"); ok {
		t.Error("Has reported a blob that was never stored")
	}
	if _, ok := c.Has(""); ok {
		t.Error("Has must reject the empty hash")
	}
}

func TestStoreIdempotent(t *testing.T) {
	c := New(t.TempDir())
	content := []byte("same bytes twice")

	h1, p1, err := c.Store(bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	h2, p2, err := c.Store(bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 || p1 != p2 {
		t.Errorf("same content produced different blobs: %s vs %s", p1, p2)
	}
}

func TestStoreConcurrentSameContent(t *testing.T) {
	c := New(t.TempDir())
	content := bytes.Repeat([]byte("payload "), 4096)

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, path, err := c.Store(bytes.NewReader(content))
			if err != nil {
				t.Errorf("Store failed: %v", err)
				return
			}
			paths[i] = path
		}()
	}
	wg.Wait()

	for _, p := range paths[1:] {
		if p != paths[0] {
			t.Fatalf("concurrent stores diverged: %v", paths)
		}
	}
	got, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Error("blob corrupted by concurrent stores")
	}

	// No partial temp files may survive.
	entries, err := os.ReadDir(filepath.Dir(filepath.Dir(paths[0])))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".partial") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestStoreFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mod.pak")
	if err := os.WriteFile(src, []byte("pak data"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(filepath.Join(dir, "blobs"))
	hash, path, err := c.StoreFile(src)
	if err != nil {
		t.Fatalf("StoreFile failed: %v", err)
	}
	if _, ok := c.Has(hash); !ok {
		t.Errorf("stored file not found at %s", path)
	}
}

func TestTrim(t *testing.T) {
	c := New(t.TempDir())

	keepHash, _, err := c.Store(bytes.NewReader([]byte("keep me")))
	if err != nil {
		t.Fatal(err)
	}
	dropHash, _, err := c.Store(bytes.NewReader([]byte("drop me")))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Trim(map[string]bool{keepHash: true}); err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if _, ok := c.Has(keepHash); !ok {
		t.Error("Trim removed a kept blob")
	}
	if _, ok := c.Has(dropHash); ok {
		t.Error("Trim left an unreferenced blob")
	}
}

func TestTrimMissingRoot(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "never-created"))
	if err := c.Trim(nil); err != nil {
		t.Errorf("Trim on a missing root should be a no-op, got %v", err)
	}
}
