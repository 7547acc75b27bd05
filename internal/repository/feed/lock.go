package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/ukenn2112/mojibobplugin/internal/logger"
)

// LockSuffix is appended to the feed path to name its lock file.
const LockSuffix = ".lock"

// lockAttempts bounds how many stale locks are cleared before giving up.
const lockAttempts = 2

// ErrLocked is returned when another live process holds the feed lock.
var ErrLocked = errors.New("feed is locked")

// Lock is an exclusive, cross-process claim on a feed file.
type Lock struct {
	path string
}

// Acquire creates the lock file for feedPath holding the current PID.
// A lock left behind by a process that is no longer running is removed and
// taken over; a lock held by a live process fails with ErrLocked.
func Acquire(ctx context.Context, feedPath string) (*Lock, error) {
	lockPath := feedPath + LockSuffix

	if err := os.MkdirAll(filepath.Dir(lockPath), dirMode); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	for range lockAttempts {
		file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFileMode)
		if err == nil {
			_, writeErr := fmt.Fprintf(file, "%d\n", os.Getpid())
			if err = errors.Join(writeErr, file.Close()); err != nil {
				_ = os.Remove(lockPath)

				return nil, fmt.Errorf("write lock file: %w", err)
			}

			logger.DebugKV(ctx, "Acquired feed lock", "path", lockPath)

			return &Lock{path: lockPath}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		owner, alive := lockOwner(lockPath)
		if alive {
			return nil, fmt.Errorf("%w by process %d (%s)", ErrLocked, owner, lockPath)
		}

		logger.WarnKV(ctx, "Removing stale feed lock", "path", lockPath, "pid", owner)

		if err = os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock file: %w", err)
		}
	}

	return nil, fmt.Errorf("%w (%s)", ErrLocked, lockPath)
}

// Release removes the lock file. It is safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}

	return nil
}

// lockOwner returns the PID recorded in the lock file and whether that
// process is still running. Unreadable or garbage content counts as stale.
func lockOwner(lockPath string) (int, bool) {
	contents, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		// The process table could not be read; do not steal the lock.
		return pid, true
	}

	return pid, process != nil
}
