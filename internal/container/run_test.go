package container

import (
	"bytes"
	"testing"

	"github.com/forgecheck/grader/internal/domain"
)

func TestTranslateExit(t *testing.T) {
	cases := []struct {
		name     string
		exitCode int64
		timedOut bool
		want     domain.StatusCode
	}{
		{"clean exit", 0, false, domain.StatusSuccess},
		{"purposely stopped", PurposelyStoppedExitCode, false, domain.StatusPurposelyStopped},
		{"nonzero exit", 1, false, domain.StatusApplicationError},
		{"timeout overrides exit code", 0, true, domain.StatusTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translateExit(tc.exitCode, tc.timedOut)
			if got != tc.want {
				t.Fatalf("translateExit(%d, %v) = %s, want %s", tc.exitCode, tc.timedOut, got, tc.want)
			}
		})
	}
}

func TestLimitedWriter(t *testing.T) {
	t.Run("passes through under limit", func(t *testing.T) {
		var buf bytes.Buffer
		w := &limitedWriter{w: &buf, limit: 100}
		n, err := w.Write([]byte("hello"))
		if err != nil || n != 5 {
			t.Fatalf("unexpected write result: n=%d err=%v", n, err)
		}
		if buf.String() != "hello" {
			t.Fatalf("expected buffer to contain write, got %q", buf.String())
		}
	})

	t.Run("truncates at limit without erroring", func(t *testing.T) {
		var buf bytes.Buffer
		w := &limitedWriter{w: &buf, limit: 3}
		n, err := w.Write([]byte("abcdef"))
		if err != nil || n != 6 {
			t.Fatalf("expected reported length 6 with no error, got n=%d err=%v", n, err)
		}
		if buf.String() != "abc" {
			t.Fatalf("expected truncated buffer, got %q", buf.String())
		}
	})

	t.Run("discards once already saturated", func(t *testing.T) {
		var buf bytes.Buffer
		w := &limitedWriter{w: &buf, limit: 3, written: 3}
		n, err := w.Write([]byte("more"))
		if err != nil || n != 4 {
			t.Fatalf("expected discard to still report full length, got n=%d err=%v", n, err)
		}
		if buf.Len() != 0 {
			t.Fatalf("expected no bytes written once saturated, got %q", buf.String())
		}
	})
}
