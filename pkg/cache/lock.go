package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	lockSuffix    = ".lock"
	lockRetryWait = 150 * time.Millisecond
)

// lockFile guards target against concurrent writers in other processes
// by exclusively creating target.lock containing this process's PID.
// A lock held by a dead process is treated as stale and reclaimed.
// Returns the unlock function.
func lockFile(target string) (func() error, error) {
	path := target + lockSuffix
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%s %d", time.Now().Format(time.RFC3339), os.Getpid())
			f.Close()
			if werr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", werr)
			}
			return func() error { return os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquiring lock: %w", err)
		}

		pid, ok := lockOwner(path)
		if !ok {
			// Unreadable or malformed lock file; reclaim it.
			os.Remove(path)
			continue
		}
		if pidAlive(pid) {
			time.Sleep(lockRetryWait)
			continue
		}
		// Owner died without unlocking.
		os.Remove(path)
	}
}

func lockOwner(path string) (int, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(strings.TrimSpace(string(content)))
	if len(fields) == 0 {
		return 0, false
	}
	pid, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return false
	}
	// Exists but not signalable by us (EPERM); treat as held.
	return true
}
