package submission

import (
	"testing"
	"time"

	"github.com/forgecheck/grader/internal/domain"
)

func TestIdempotencyCache(t *testing.T) {
	t.Run("miss before any put", func(t *testing.T) {
		c := newIdempotencyCache(time.Minute)
		if _, ok := c.get("k"); ok {
			t.Fatalf("expected miss on empty cache")
		}
	})

	t.Run("hit within the window", func(t *testing.T) {
		c := newIdempotencyCache(time.Minute)
		exec := domain.ContainerExecution{ID: "abc"}
		c.put("k", exec)
		got, ok := c.get("k")
		if !ok || got.ID != "abc" {
			t.Fatalf("expected cache hit with stored execution, got %+v ok=%v", got, ok)
		}
	})

	t.Run("miss once expired", func(t *testing.T) {
		c := newIdempotencyCache(1)
		c.put("k", domain.ContainerExecution{ID: "abc"})
		time.Sleep(2 * time.Millisecond)
		if _, ok := c.get("k"); ok {
			t.Fatalf("expected expired entry to miss")
		}
	})

	t.Run("disabled window never caches", func(t *testing.T) {
		c := newIdempotencyCache(0)
		c.put("k", domain.ContainerExecution{ID: "abc"})
		if _, ok := c.get("k"); ok {
			t.Fatalf("expected no caching when window is zero")
		}
	})

	t.Run("submissionKey differs across projects for the same archive", func(t *testing.T) {
		archive := []byte("same bytes")
		k1 := submissionKey("projA", archive, nil)
		k2 := submissionKey("projB", archive, nil)
		if k1 == k2 {
			t.Fatalf("expected different keys across projects")
		}
	})

	t.Run("submissionKey is stable for identical input", func(t *testing.T) {
		archive := []byte("same bytes")
		k1 := submissionKey("proj", archive, []string{"--match-test", "testFoo"})
		k2 := submissionKey("proj", archive, []string{"--match-test", "testFoo"})
		if k1 != k2 {
			t.Fatalf("expected stable key for identical input")
		}
	})
}
