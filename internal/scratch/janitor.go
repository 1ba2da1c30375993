package scratch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Janitor periodically removes scratch subdirectories older than maxAge.
// Normal operation always cleans up its own scratch directory on every exit
// path; the janitor is a backstop against leaks from crashed workers or
// killed processes that never reached their deferred cleanup.
type Janitor struct {
	mgr      *Manager
	interval time.Duration
	maxAge   time.Duration
	log      *slog.Logger
}

// NewJanitor builds a janitor sweeping mgr's root every interval, removing
// entries older than maxAge.
func NewJanitor(mgr *Manager, interval, maxAge time.Duration, log *slog.Logger) *Janitor {
	return &Janitor{mgr: mgr, interval: interval, maxAge: maxAge, log: log}
}

// Run blocks, sweeping on a ticker until ctx is canceled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	entries, err := os.ReadDir(j.mgr.root)
	if err != nil {
		j.log.Warn("scratch janitor: read root failed", "error", err)
		return
	}
	cutoff := time.Now().Add(-j.maxAge)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.mgr.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.log.Warn("scratch janitor: remove failed", "path", path, "error", err)
			continue
		}
		j.log.Info("scratch janitor: removed stale directory", "path", path, "age", time.Since(info.ModTime()))
	}
}
