package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/forgecheck/grader/internal/domain"
)

var (
	// forgeSuiteHeader matches "Running 2 tests for test/Foo.t.sol:FooTest",
	// the group header forge prints before each contract's PASS/FAIL lines.
	forgeSuiteHeader = regexp.MustCompile(`^Running\s+\d+\s+tests?\s+for\s+\S+:([A-Za-z0-9_]+)$`)
	// forgePassLine matches "[PASS] testFoo() (gas: 12345)".
	forgePassLine = regexp.MustCompile(`^\[PASS\]\s+([A-Za-z0-9_]+)\([^)]*\)(?:\s+\(gas:\s*(-?\d+)\))?`)
	// forgeFailLine matches "[FAIL. Reason: nope] testFoo(...)".
	forgeFailLine = regexp.MustCompile(`^\[FAIL\.\s*Reason:\s*(.*?)\]\s+([A-Za-z0-9_]+)\(`)
	// forgeSummaryLine matches "Test result: ok. 2 passed; 1 failed; 0 skipped; ..."
	forgeSummaryLine = regexp.MustCompile(`^Test result:.*?(\d+)\s+passed;\s*(\d+)\s+failed`)
)

// ForgeTest parses forge's verbose test-run output: a "Running N tests for
// ...:Contract" header per group, per-test PASS/FAIL lines qualified by the
// most recent header (matching the "Contract.testName" shape GasSnapshot
// produces), plus a trailing "Test result: ..." summary line.
func ForgeTest(text string) domain.TestOutput {
	var tests []domain.TestCase
	var overall domain.Overall
	var suite string

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := forgeSuiteHeader.FindStringSubmatch(line); m != nil {
			suite = m[1]
			continue
		}
		if m := forgePassLine.FindStringSubmatch(line); m != nil {
			tc := domain.TestCase{Test: qualify(suite, m[1]), Status: domain.TestPassed}
			if m[2] != "" {
				if gas, err := strconv.ParseInt(m[2], 10, 64); err == nil {
					tc.GasUsed = int64Ptr(gas)
				}
			}
			tests = append(tests, tc)
			continue
		}
		if m := forgeFailLine.FindStringSubmatch(line); m != nil {
			tests = append(tests, domain.TestCase{
				Test:   qualify(suite, m[2]),
				Status: domain.TestFailed,
				Reason: strings.TrimSpace(m[1]),
			})
			continue
		}
		if m := forgeSummaryLine.FindStringSubmatch(line); m != nil {
			passed, errP := strconv.Atoi(m[1])
			failed, errF := strconv.Atoi(m[2])
			if errP == nil && errF == nil {
				overall.NumberOfPassed = intPtr(passed)
				overall.NumberOfFailed = intPtr(failed)
				overall.NumberOfTests = intPtr(passed + failed)
				overall.Passed = boolPtr(failed == 0)
			}
		}
	}

	if len(tests) == 0 && overall.NumberOfTests == nil {
		return empty()
	}
	return domain.TestOutput{Overall: overall, Tests: tests}
}

// qualify prefixes name with suite, the same "Contract.testName" shape
// GasSnapshot produces, so submission test names reconcile against
// Project.BaselineTests. Left bare when no suite header has been seen.
func qualify(suite, name string) string {
	if suite == "" {
		return name
	}
	return suite + "." + name
}
