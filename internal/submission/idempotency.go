package submission

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/forgecheck/grader/internal/domain"
)

// idempotencyCache remembers the result of a recent submission keyed by the
// SHA-256 hash of (projectName, archive bytes, execution args). A replay of
// a byte-identical submission within the configured window returns the
// cached result instead of re-running a container — the runner's execution
// is idempotent per submission archive hash (spec §4.5).
type idempotencyCache struct {
	window time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	execution domain.ContainerExecution
	expiresAt time.Time
}

func newIdempotencyCache(window time.Duration) *idempotencyCache {
	return &idempotencyCache{window: window, entries: make(map[string]cacheEntry)}
}

func submissionKey(projectName string, archive []byte, execArgs []string) string {
	h := sha256.New()
	h.Write([]byte(projectName))
	h.Write([]byte{0})
	h.Write(archive)
	h.Write([]byte{0})
	for _, arg := range execArgs {
		h.Write([]byte(arg))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *idempotencyCache) get(key string) (domain.ContainerExecution, bool) {
	if c.window <= 0 {
		return domain.ContainerExecution{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return domain.ContainerExecution{}, false
	}
	return entry.execution, true
}

func (c *idempotencyCache) put(key string, execution domain.ContainerExecution) {
	if c.window <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{execution: execution, expiresAt: time.Now().Add(c.window)}
	c.evictLocked()
}

// evictLocked drops expired entries; called while holding mu. Bounds
// memory growth without a background goroutine.
func (c *idempotencyCache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
