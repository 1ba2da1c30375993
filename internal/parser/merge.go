package parser

import "github.com/forgecheck/grader/internal/domain"

// Merge combines the outputs of the three parsers into one TestOutput. The
// overall block is a field-wise union preferring the first non-nil value
// seen, in argument order. The tests sequence is keyed by test name: a test
// appearing in more than one input keeps the union of the fields it was
// given, in the order it was first seen.
func Merge(outputs ...domain.TestOutput) domain.TestOutput {
	var overall domain.Overall
	order := make([]string, 0)
	byName := make(map[string]domain.TestCase)

	for _, out := range outputs {
		mergeOverall(&overall, out.Overall)
		for _, tc := range out.Tests {
			existing, ok := byName[tc.Test]
			if !ok {
				order = append(order, tc.Test)
				byName[tc.Test] = tc
				continue
			}
			byName[tc.Test] = mergeTestCase(existing, tc)
		}
	}

	merged := domain.TestOutput{Overall: overall}
	if len(order) > 0 {
		merged.Tests = make([]domain.TestCase, 0, len(order))
		for _, name := range order {
			merged.Tests = append(merged.Tests, byName[name])
		}
	}
	return merged
}

func mergeOverall(dst *domain.Overall, src domain.Overall) {
	if dst.NumberOfTests == nil {
		dst.NumberOfTests = src.NumberOfTests
	}
	if dst.NumberOfPassed == nil {
		dst.NumberOfPassed = src.NumberOfPassed
	}
	if dst.NumberOfFailed == nil {
		dst.NumberOfFailed = src.NumberOfFailed
	}
	if dst.Passed == nil {
		dst.Passed = src.Passed
	}
	if dst.GasDiffOverall == nil {
		dst.GasDiffOverall = src.GasDiffOverall
	}
}

func mergeTestCase(dst, src domain.TestCase) domain.TestCase {
	if dst.Status == "" {
		dst.Status = src.Status
	}
	if dst.GasUsed == nil {
		dst.GasUsed = src.GasUsed
	}
	if dst.GasDiff == nil {
		dst.GasDiff = src.GasDiff
	}
	if dst.Reason == "" {
		dst.Reason = src.Reason
	}
	return dst
}
