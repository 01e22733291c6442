package tokenstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

const (
	lockSuffix         = ".lock"
	lockRetryDelay     = 100 * time.Millisecond
	lockMaxAttempts    = 50
	lockStaleAfter     = 30 * time.Second
	lockFilePerm       = fs.FileMode(0o600)
	tokenFilePerm      = fs.FileMode(0o600)
	tokenFileTmpSuffix = ".tmp"
)

// lockPolicy controls how long acquireLock waits for a competing holder.
type lockPolicy struct {
	attempts   int
	delay      time.Duration
	staleAfter time.Duration
}

var defaultLockPolicy = lockPolicy{
	attempts:   lockMaxAttempts,
	delay:      lockRetryDelay,
	staleAfter: lockStaleAfter,
}

// fileLock is an exclusive advisory lock held through a sibling ".lock" file.
// It coordinates token writes between processes sharing one token file.
type fileLock struct {
	f    *os.File
	path string
}

// acquireLock creates target+".lock" exclusively, waiting while another
// holder has it. A lock older than policy.staleAfter is treated as left
// behind by a crashed process and removed.
func acquireLock(target string, policy lockPolicy) (*fileLock, error) {
	path := target + lockSuffix

	for range policy.attempts {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFilePerm)
		if err == nil {
			// PID helps when inspecting a lock by hand.
			fmt.Fprintf(f, "%d", os.Getpid())
			return &fileLock{f: f, path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to acquire file lock: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil &&
			time.Since(info.ModTime()) > policy.staleAfter {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to remove stale lock file %s: %w", path, rmErr)
			}
			continue
		}

		time.Sleep(policy.delay)
	}

	return nil, fmt.Errorf(
		"timeout waiting for file lock after %v",
		time.Duration(policy.attempts)*policy.delay,
	)
}

// release closes and removes the lock file. Releasing twice returns the
// removal error of the second call.
func (l *fileLock) release() error {
	if l.f != nil {
		l.f.Close()
		l.f = nil
	}
	return os.Remove(l.path)
}
