package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"

	"github.com/gofrs/flock"
)

// guard admits one run per key at a time. In-process exclusion uses a set;
// with a lock directory, a lock file per key extends it across processes.
type guard struct {
	mu      gosync.Mutex
	running map[string]struct{}
	lockDir string
}

func newGuard(lockDir string) *guard {
	return &guard{
		running: make(map[string]struct{}),
		lockDir: lockDir,
	}
}

// tryAcquire returns a release func, or ok=false when key is already held.
func (g *guard) tryAcquire(key string) (release func(), ok bool, err error) {
	g.mu.Lock()
	if _, busy := g.running[key]; busy {
		g.mu.Unlock()
		return nil, false, nil
	}
	g.running[key] = struct{}{}
	g.mu.Unlock()

	unmark := func() {
		g.mu.Lock()
		delete(g.running, key)
		g.mu.Unlock()
	}

	if g.lockDir == "" {
		return unmark, true, nil
	}

	if err := os.MkdirAll(g.lockDir, 0755); err != nil {
		unmark()
		return nil, false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	lock := flock.New(g.lockPath(key))
	locked, err := lock.TryLock()
	if err != nil {
		unmark()
		return nil, false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !locked {
		unmark()
		return nil, false, nil
	}
	return func() {
		_ = lock.Unlock()
		unmark()
	}, true, nil
}

func (g *guard) lockPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(g.lockDir, "sync-"+hex.EncodeToString(sum[:8])+".lock")
}
