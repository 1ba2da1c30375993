package submission

import (
	"reflect"
	"testing"
)

func TestBuildExecArgs(t *testing.T) {
	t.Run("no requested args returns base unchanged", func(t *testing.T) {
		base := []string{"forge", "snapshot", "--diff"}
		got := buildExecArgs(base, nil)
		if !reflect.DeepEqual(got, base) {
			t.Fatalf("expected %v, got %v", base, got)
		}
	})

	t.Run("whitelisted args are appended in sorted order", func(t *testing.T) {
		base := []string{"forge", "snapshot", "--diff"}
		got := buildExecArgs(base, map[string]string{
			"matchTest":     "testFoo",
			"fuzzRuns":      "500",
			"matchContract": "Foo",
		})
		want := []string{
			"forge", "snapshot", "--diff",
			"--fuzz-runs", "500",
			"--match-contract", "Foo",
			"--match-test", "testFoo",
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("unknown argument is silently dropped, not rejected", func(t *testing.T) {
		base := []string{"forge", "snapshot", "--diff"}
		got := buildExecArgs(base, map[string]string{"badArg": "x"})
		if !reflect.DeepEqual(got, base) {
			t.Fatalf("expected unknown arg dropped, got %v", got)
		}
	})
}
