package parser

import "testing"

func TestGasSnapshot(t *testing.T) {
	t.Run("parses well formed lines", func(t *testing.T) {
		text := "A:testFoo() (gas: 1234)\nA:testBar() (gas: 5678)\n"
		out := GasSnapshot(text)
		if len(out.Tests) != 2 {
			t.Fatalf("expected 2 tests, got %d", len(out.Tests))
		}
		if out.Tests[0].Test != "A.testFoo" || *out.Tests[0].GasUsed != 1234 {
			t.Fatalf("unexpected first test: %+v", out.Tests[0])
		}
		if out.Overall.NumberOfTests == nil || *out.Overall.NumberOfTests != 2 {
			t.Fatalf("expected numberOfTests=2, got %+v", out.Overall.NumberOfTests)
		}
	})

	t.Run("skips malformed lines silently", func(t *testing.T) {
		text := "A:testFoo() (gas: 1234)\nthis is not a snapshot line\n"
		out := GasSnapshot(text)
		if len(out.Tests) != 1 {
			t.Fatalf("expected 1 test, got %d", len(out.Tests))
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		out := GasSnapshot("")
		if out.Overall.NumberOfTests != nil || len(out.Tests) != 0 {
			t.Fatalf("expected empty output, got %+v", out)
		}
	})
}

func TestForgeTest(t *testing.T) {
	t.Run("passing run", func(t *testing.T) {
		text := "[PASS] testFoo() (gas: 4242)\nTest result: ok. 1 passed; 0 failed; 0 skipped; finished in 1.00ms\n"
		out := ForgeTest(text)
		if len(out.Tests) != 1 || out.Tests[0].Status != "PASS" {
			t.Fatalf("unexpected tests: %+v", out.Tests)
		}
		if out.Overall.NumberOfPassed == nil || *out.Overall.NumberOfPassed != 1 {
			t.Fatalf("expected numberOfPassed=1, got %+v", out.Overall)
		}
		if out.Overall.Passed == nil || !*out.Overall.Passed {
			t.Fatalf("expected passed=true")
		}
	})

	t.Run("failing run carries reason", func(t *testing.T) {
		text := "[FAIL. Reason: nope] testFoo(uint256)\nTest result: FAILED. 0 passed; 1 failed; 0 skipped; finished in 1.00ms\n"
		out := ForgeTest(text)
		if len(out.Tests) != 1 || out.Tests[0].Status != "FAIL" || out.Tests[0].Reason != "nope" {
			t.Fatalf("unexpected tests: %+v", out.Tests)
		}
		if out.Overall.Passed == nil || *out.Overall.Passed {
			t.Fatalf("expected passed=false")
		}
	})

	t.Run("zero tests still derives overall", func(t *testing.T) {
		text := "Test result: ok. 0 passed; 0 failed; 0 skipped; finished in 0.10ms\n"
		out := ForgeTest(text)
		if len(out.Tests) != 0 {
			t.Fatalf("expected no tests, got %d", len(out.Tests))
		}
		if out.Overall.NumberOfTests == nil || *out.Overall.NumberOfTests != 0 {
			t.Fatalf("expected numberOfTests=0, got %+v", out.Overall.NumberOfTests)
		}
		if out.Overall.Passed == nil || !*out.Overall.Passed {
			t.Fatalf("expected passed=true for zero tests")
		}
	})

	t.Run("unrecognized input yields empty output", func(t *testing.T) {
		out := ForgeTest("nothing forge-shaped here\n")
		if out.Overall.NumberOfTests != nil || len(out.Tests) != 0 {
			t.Fatalf("expected empty output, got %+v", out)
		}
	})
}

func TestGasDiff(t *testing.T) {
	t.Run("parses signed deltas", func(t *testing.T) {
		text := "testFoo() (gas: 1300 (Δ +100))\ntestBar() (gas: 900 (Δ -50))\n"
		out := GasDiff(text)
		if len(out.Tests) != 2 {
			t.Fatalf("expected 2 tests, got %d", len(out.Tests))
		}
		if *out.Tests[0].GasDiff != 100 || *out.Tests[1].GasDiff != -50 {
			t.Fatalf("unexpected diffs: %+v", out.Tests)
		}
		if out.Overall.GasDiffOverall == nil || *out.Overall.GasDiffOverall != 50 {
			t.Fatalf("expected overall diff sum 50, got %+v", out.Overall.GasDiffOverall)
		}
	})

	t.Run("no matches yields empty output", func(t *testing.T) {
		out := GasDiff("no diff lines in this text")
		if out.Overall.GasDiffOverall != nil || len(out.Tests) != 0 {
			t.Fatalf("expected empty output, got %+v", out)
		}
	})
}

func TestMerge(t *testing.T) {
	t.Run("overall fields union with first-non-nil precedence", func(t *testing.T) {
		a := ForgeTest("[PASS] testFoo() \nTest result: ok. 1 passed; 0 failed; 0 skipped; finished in 1ms\n")
		b := GasDiff("testFoo() (gas: 1000 (Δ +10))\n")
		merged := Merge(a, b)
		if merged.Overall.NumberOfPassed == nil || *merged.Overall.NumberOfPassed != 1 {
			t.Fatalf("expected numberOfPassed from forge output, got %+v", merged.Overall)
		}
		if merged.Overall.GasDiffOverall == nil || *merged.Overall.GasDiffOverall != 10 {
			t.Fatalf("expected gasDiffOverall from diff output, got %+v", merged.Overall)
		}
	})

	t.Run("tests keyed by name union fields, preserving first-seen order", func(t *testing.T) {
		a := ForgeTest("[PASS] testFoo() \n[PASS] testBar() \nTest result: ok. 2 passed; 0 failed; 0 skipped; finished in 1ms\n")
		b := GasDiff("testFoo() (gas: 500 (Δ +5))\n")
		merged := Merge(a, b)
		if len(merged.Tests) != 2 {
			t.Fatalf("expected 2 tests, got %d", len(merged.Tests))
		}
		if merged.Tests[0].Test != "testFoo" || merged.Tests[0].GasDiff == nil || *merged.Tests[0].GasDiff != 5 {
			t.Fatalf("expected testFoo to carry merged gasDiff, got %+v", merged.Tests[0])
		}
		if merged.Tests[1].Test != "testBar" || merged.Tests[1].GasDiff != nil {
			t.Fatalf("expected testBar to retain only its own fields, got %+v", merged.Tests[1])
		}
	})
}
