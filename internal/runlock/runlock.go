// Package runlock keeps two gate runs from writing package state at the same
// time. The lock is an exclusive lock on a file that holds the owner's PID.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrLocked is returned by Acquire when another process holds the lock.
var ErrLocked = errors.New("another run holds the lock")

// Lock is a held run lock.
type Lock struct {
	path string
	file *os.File
}

// acquireAttempts bounds retries when the file is replaced between open and
// lock.
const acquireAttempts = 3

// errStaleFile means the locked file was unlinked by its previous holder.
var errStaleFile = errors.New("lock file replaced while locking")

// Acquire creates and locks the file at path without blocking.
// An empty path returns a nil Lock, which is safe to Close.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for attempt := 1; ; attempt++ {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening lock file: %w", err)
		}

		err = claim(file, path)
		if errors.Is(err, errStaleFile) && attempt < acquireAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := writePID(file); err != nil {
			_ = unlockFile(file)
			file.Close()
			return nil, err
		}
		return &Lock{path: path, file: file}, nil
	}
}

// claim locks file and checks that path still names it. A previous holder
// unlinks the file before unlocking, so a lock won on an unlinked file
// excludes nobody. On failure file is closed.
func claim(file *os.File, path string) error {
	if err := lockFile(file); err != nil {
		file.Close()
		return fmt.Errorf("%w (%s): %w", ErrLocked, describeHolder(path), err)
	}
	if err := sameFile(file, path); err != nil {
		_ = unlockFile(file)
		file.Close()
		return err
	}
	return nil
}

func sameFile(file *os.File, path string) error {
	held, err := file.Stat()
	if err != nil {
		return fmt.Errorf("checking lock file: %w", err)
	}
	current, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errStaleFile
	}
	if err != nil {
		return fmt.Errorf("checking lock file: %w", err)
	}
	if !os.SameFile(held, current) {
		return errStaleFile
	}
	return nil
}

// describeHolder names the PID recorded in path and whether it is alive.
func describeHolder(path string) string {
	pid, err := ReadPID(path)
	if err != nil {
		return "pid unknown"
	}
	if !IsRunning(pid) {
		return fmt.Sprintf("pid %d, not running", pid)
	}
	return "pid " + strconv.Itoa(pid)
}

func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("seeking lock file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("writing pid: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing lock file: %w", err)
	}
	return nil
}

// Close removes the file and then releases the lock, so a new file at path
// is only created once nobody can lock the old one. Closing twice is a no-op.
func (l *Lock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	// Windows refuses to delete an open file; remove after closing there.
	rmErr := os.Remove(l.path)
	_ = unlockFile(l.file)
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("closing lock file: %w", err)
	}

	if rmErr != nil && !os.IsNotExist(rmErr) {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing lock file: %w", err)
		}
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// ReadPID reads the owner PID from a lock file.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in file: %w", err)
	}
	return pid, nil
}
