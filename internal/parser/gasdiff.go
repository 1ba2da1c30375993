package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/forgecheck/grader/internal/domain"
)

// gasDiffLine matches a per-test block reporting "testFoo() (gas: 12345 (Δ +120))".
var gasDiffLine = regexp.MustCompile(`^([A-Za-z0-9_]+)\([^)]*\)\s+\(gas:\s*(-?\d+)\s*\(\x{0394}\s*([+-]?\d+)\)\)`)

// GasDiff parses forge snapshot --diff style output: per-test gas usage with
// a signed delta against a prior snapshot, plus an overall sum of deltas.
func GasDiff(text string) domain.TestOutput {
	var tests []domain.TestCase
	var sum int64
	var any bool

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := gasDiffLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		gas, errGas := strconv.ParseInt(m[2], 10, 64)
		diff, errDiff := strconv.ParseInt(m[3], 10, 64)
		if errGas != nil || errDiff != nil {
			continue
		}
		tests = append(tests, domain.TestCase{
			Test:    m[1],
			GasUsed: int64Ptr(gas),
			GasDiff: int64Ptr(diff),
		})
		sum += diff
		any = true
	}

	if !any {
		return empty()
	}
	return domain.TestOutput{
		Overall: domain.Overall{GasDiffOverall: int64Ptr(sum)},
		Tests:   tests,
	}
}
