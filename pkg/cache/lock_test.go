package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestLockSimple(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.json")

	unlock, err := lockFile(target)
	if err != nil {
		t.Fatalf("failed to lock: %v", err)
	}
	if _, err := os.Stat(target + lockSuffix); os.IsNotExist(err) {
		t.Error("lock file not created")
	}
	if err := unlock(); err != nil {
		t.Errorf("failed to unlock: %v", err)
	}
	if _, err := os.Stat(target + lockSuffix); !os.IsNotExist(err) {
		t.Error("lock file should be gone after unlock")
	}
}

func TestLockStaleReclaimed(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.json")
	path := target + lockSuffix

	// Find a PID that is definitely dead.
	stalePid := 0
	for pid := 32000; pid < 60000; pid++ {
		proc, _ := os.FindProcess(pid)
		if proc.Signal(syscall.Signal(0)) == syscall.ESRCH {
			stalePid = pid
			break
		}
	}
	if stalePid == 0 {
		stalePid = 9999999
	}

	content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), stalePid)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		unlock, err := lockFile(target)
		if err != nil {
			t.Errorf("failed to reclaim stale lock: %v", err)
			return
		}
		unlock()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockFile hung on a stale lock")
	}
}

func TestLockMalformedReclaimed(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.json")
	path := target + lockSuffix
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	unlock, err := lockFile(target)
	if err != nil {
		t.Fatalf("failed to reclaim malformed lock: %v", err)
	}
	unlock()
}
