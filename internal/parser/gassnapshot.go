package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/forgecheck/grader/internal/domain"
)

// gasSnapshotLine matches "TestSuite:testName() (gas: 12345)".
var gasSnapshotLine = regexp.MustCompile(`^([^:]+):([A-Za-z0-9_]+)\([^)]*\)\s+\(gas:\s*(-?\d+)\)$`)

// GasSnapshot parses the baseline-discovery tool's gas-snapshot format. Each
// non-blank line has the shape "TestSuite:testName() (gas: <n>)". Malformed
// lines are skipped silently.
func GasSnapshot(text string) domain.TestOutput {
	var tests []domain.TestCase
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := gasSnapshotLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		gas, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			continue
		}
		tests = append(tests, domain.TestCase{
			Test:    m[1] + "." + m[2],
			Status:  domain.TestPassed,
			GasUsed: int64Ptr(gas),
		})
	}
	if len(tests) == 0 {
		return empty()
	}
	return domain.TestOutput{
		Overall: domain.Overall{NumberOfTests: intPtr(len(tests))},
		Tests:   tests,
	}
}
