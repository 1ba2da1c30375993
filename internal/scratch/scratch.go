// Package scratch manages per-invocation working directories used for
// archive extraction during template builds and submission runs.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manager owns scratch directories under a common root. Each invocation
// gets a unique subdirectory; no lock is needed across invocations.
type Manager struct {
	root string
}

// New ensures the scratch root exists and is accessible.
func New(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("scratch root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the scratch root directory.
func (m *Manager) Root() string {
	return m.root
}

// Prepare creates a fresh, empty directory for the provided identifier,
// e.g. "<project>_creation_<epoch_ms>" or "<project>_submission_<epoch_ms>".
func (m *Manager) Prepare(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("scratch identifier cannot be empty")
	}
	dir := filepath.Join(m.root, identifier)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("cleanup scratch dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

// Cleanup removes the scratch directory at path. It refuses to touch
// anything outside the configured root.
func (m *Manager) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to cleanup path outside scratch root")
	}
	return os.RemoveAll(path)
}

// CleanupByID removes the scratch directory associated with identifier.
func (m *Manager) CleanupByID(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("scratch identifier cannot be empty")
	}
	return m.Cleanup(filepath.Join(m.root, identifier))
}
