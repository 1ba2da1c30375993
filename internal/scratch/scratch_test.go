package scratch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManagerPrepare(t *testing.T) {
	t.Run("creates a fresh directory", func(t *testing.T) {
		root := t.TempDir()
		mgr, err := New(root)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		dir, err := mgr.Prepare("proj_submission_1")
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %s", dir)
		}
	})

	t.Run("wipes any stale contents for the same identifier", func(t *testing.T) {
		root := t.TempDir()
		mgr, err := New(root)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		dir, err := mgr.Prepare("proj_submission_1")
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "leftover.txt"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write leftover: %v", err)
		}
		dir2, err := mgr.Prepare("proj_submission_1")
		if err != nil {
			t.Fatalf("second Prepare: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir2, "leftover.txt")); !os.IsNotExist(err) {
			t.Fatalf("expected leftover file to be gone, stat err=%v", err)
		}
	})

	t.Run("rejects empty identifier", func(t *testing.T) {
		mgr, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := mgr.Prepare(""); err == nil {
			t.Fatalf("expected error for empty identifier")
		}
	})
}

func TestManagerCleanup(t *testing.T) {
	t.Run("removes the directory", func(t *testing.T) {
		root := t.TempDir()
		mgr, err := New(root)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		dir, err := mgr.Prepare("proj_creation_1")
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		if err := mgr.Cleanup(dir); err != nil {
			t.Fatalf("Cleanup: %v", err)
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Fatalf("expected directory removed, stat err=%v", err)
		}
	})

	t.Run("refuses to remove paths outside the root", func(t *testing.T) {
		mgr, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		outside := t.TempDir()
		if err := mgr.Cleanup(outside); err == nil {
			t.Fatalf("expected refusal to cleanup outside root")
		}
		if _, err := os.Stat(outside); err != nil {
			t.Fatalf("expected outside dir to survive, stat err=%v", err)
		}
	})

	t.Run("cleanup by id", func(t *testing.T) {
		root := t.TempDir()
		mgr, err := New(root)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := mgr.Prepare("proj_submission_2"); err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		if err := mgr.CleanupByID("proj_submission_2"); err != nil {
			t.Fatalf("CleanupByID: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "proj_submission_2")); !os.IsNotExist(err) {
			t.Fatalf("expected directory removed")
		}
	})
}
