package tokenstore

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")

	lock, err := acquireLock(target, defaultLockPolicy)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	if _, err := os.Stat(target + lockSuffix); os.IsNotExist(err) {
		t.Errorf("Lock file was not created")
	}

	if err := lock.release(); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}

	if _, err := os.Stat(target + lockSuffix); !os.IsNotExist(err) {
		t.Errorf("Lock file was not removed after release")
	}
}

func TestFileLock_SerializesHolders(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")

	const workers = 8
	var (
		holders atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()

			lock, err := acquireLock(target, defaultLockPolicy)
			if err != nil {
				t.Errorf("worker %d: failed to acquire lock: %v", id, err)
				return
			}
			if holders.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			holders.Add(-1)

			if err := lock.release(); err != nil {
				t.Errorf("worker %d: failed to release lock: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if overlap.Load() {
		t.Errorf("Two workers held the lock at the same time")
	}
	if _, err := os.Stat(target + lockSuffix); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after all workers finished")
	}
}

func TestFileLock_TakesOverStaleLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")
	lockPath := target + lockSuffix

	if err := os.WriteFile(lockPath, []byte("12345"), 0o600); err != nil {
		t.Fatalf("Failed to create stale lock: %v", err)
	}
	old := time.Now().Add(-2 * lockStaleAfter)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatalf("Failed to age stale lock: %v", err)
	}

	lock, err := acquireLock(target, defaultLockPolicy)
	if err != nil {
		t.Fatalf("Failed to acquire lock over stale lock: %v", err)
	}
	defer lock.release()

	if lock.f == nil {
		t.Errorf("Lock file handle is nil")
	}
}

func TestFileLock_TimesOutOnFreshLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(target+lockSuffix, nil, 0o600); err != nil {
		t.Fatalf("Failed to create fresh lock: %v", err)
	}

	policy := lockPolicy{attempts: 5, delay: 10 * time.Millisecond, staleAfter: time.Minute}
	start := time.Now()
	_, err := acquireLock(target, policy)
	if err == nil {
		t.Fatal("Expected timeout error, but lock was acquired")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Gave up too early: %v", elapsed)
	}
}

func TestFileLock_SecondReleaseFails(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")

	lock, err := acquireLock(target, defaultLockPolicy)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.release(); err != nil {
		t.Errorf("First release failed: %v", err)
	}
	if err := lock.release(); err == nil {
		t.Errorf("Second release should report the missing lock file")
	}
}

func BenchmarkFileLock_AcquireRelease(b *testing.B) {
	target := filepath.Join(b.TempDir(), "tokens.json")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lock, err := acquireLock(target, defaultLockPolicy)
		if err != nil {
			b.Fatalf("Failed to acquire lock: %v", err)
		}
		if err := lock.release(); err != nil {
			b.Fatalf("Failed to release lock: %v", err)
		}
	}
}
