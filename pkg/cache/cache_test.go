package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type testSection struct {
	Mods map[string]string `json:"mods"`
}

func TestOpenMissingFile(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "cache.json"))

	gen, err := c.Generation()
	if err != nil {
		t.Fatalf("expected a fresh cache for a missing file, got %v", err)
	}
	if gen.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a non-nil generation")
	}
	if !c.Dirty() {
		t.Error("a freshly created cache should be dirty until saved")
	}
}

func TestGetMissingSection(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "cache.json"))

	s, err := Get[testSection](c, "file")
	if err != nil {
		t.Fatalf("expected zero value for a missing section, got %v", err)
	}
	if s.Mods != nil {
		t.Errorf("expected zero value, got %#v", s)
	}
}

func TestUpdateThenGet(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "cache.json"))

	err := Update(c, "file", func(s *testSection) error {
		if s.Mods == nil {
			s.Mods = make(map[string]string)
		}
		s.Mods["file:///tmp/a.pak"] = "hash-a"
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	s, err := Get[testSection](c, "file")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s.Mods["file:///tmp/a.pak"] != "hash-a" {
		t.Errorf("unexpected section contents: %#v", s)
	}
	if !c.Dirty() {
		t.Error("expected dirty after update")
	}
}

func TestSectionsIsolated(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "cache.json"))

	Update(c, "file", func(s *testSection) error {
		s.Mods = map[string]string{"a": "1"}
		return nil
	})
	Update(c, "http", func(s *testSection) error {
		s.Mods = map[string]string{"b": "2"}
		return nil
	})

	fileSec, _ := Get[testSection](c, "file")
	httpSec, _ := Get[testSection](c, "http")
	if fileSec.Mods["a"] != "1" || len(fileSec.Mods) != 1 {
		t.Errorf("file section bled: %#v", fileSec)
	}
	if httpSec.Mods["b"] != "2" || len(httpSec.Mods) != 1 {
		t.Errorf("http section bled: %#v", httpSec)
	}
}

func TestSnapshotGetReturnsCopy(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "cache.json"))
	Update(c, "file", func(s *testSection) error {
		s.Mods = map[string]string{"a": "1"}
		return nil
	})

	snap, _ := Get[testSection](c, "file")
	snap.Mods["a"] = "mutated"

	again, _ := Get[testSection](c, "file")
	if again.Mods["a"] != "1" {
		t.Error("mutating a snapshot must not affect the cache")
	}
}

func TestSaveChangesGenerationAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := Open(path)

	before, _ := c.Generation()
	Update(c, "file", func(s *testSection) error {
		s.Mods = map[string]string{"a": "1"}
		return nil
	})
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	after, _ := c.Generation()
	if before == after {
		t.Error("expected a new generation after save")
	}
	if c.Dirty() {
		t.Error("expected clean after save")
	}

	// A second handle over the same file sees the persisted state.
	c2 := Open(path)
	gen2, err := c2.Generation()
	if err != nil {
		t.Fatalf("reloading saved cache failed: %v", err)
	}
	if gen2 != after {
		t.Errorf("persisted generation %s, reloaded %s", after, gen2)
	}
	s, _ := Get[testSection](c2, "file")
	if s.Mods["a"] != "1" {
		t.Errorf("persisted section lost: %#v", s)
	}
}

func TestSaveCleanIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := Open(path)
	if err := c.Save(); err != nil {
		t.Fatalf("Save on a clean cache failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("a clean never-loaded cache must not create a file")
	}
}

func TestReloadDiscardsUnsaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := Open(path)
	Update(c, "file", func(s *testSection) error {
		s.Mods = map[string]string{"keep": "1"}
		return nil
	})
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}

	Update(c, "file", func(s *testSection) error {
		s.Mods["discard"] = "2"
		return nil
	})
	if err := c.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	s, _ := Get[testSection](c, "file")
	if _, ok := s.Mods["discard"]; ok {
		t.Error("Reload should discard unsaved changes")
	}
	if s.Mods["keep"] != "1" {
		t.Error("Reload lost the persisted state")
	}
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	c := Open(path)
	if _, err := c.Generation(); err == nil {
		t.Error("expected an error on a corrupt cache file")
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "cache.json"))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := Get[testSection](c, "file"); err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				err := Update(c, "file", func(s *testSection) error {
					if s.Mods == nil {
						s.Mods = make(map[string]string)
					}
					s.Mods["k"] = string(rune('a' + i))
					return nil
				})
				if err != nil {
					t.Errorf("Update failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
