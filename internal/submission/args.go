package submission

import "sort"

// allowedExecArgs is the closed set of execution arguments the sandbox
// tool accepts (spec §6). Anything outside this set is silently dropped,
// not rejected — an unknown argument does not fail the submission.
var allowedExecArgs = map[string]string{
	"matchContract":   "--match-contract",
	"matchTest":       "--match-test",
	"matchPath":       "--match-path",
	"noMatchContract": "--no-match-contract",
	"noMatchTest":     "--no-match-test",
	"noMatchPath":     "--no-match-path",
	"fuzzRuns":        "--fuzz-runs",
	"fuzzSeed":        "--fuzz-seed",
}

// buildExecArgs renders a caller-supplied argument map into a flag slice
// appended to base, dropping any key outside the whitelist. Keys are
// sorted before rendering so the resulting command is deterministic.
func buildExecArgs(base []string, requested map[string]string) []string {
	if len(requested) == 0 {
		return base
	}
	keys := make([]string, 0, len(requested))
	for key := range requested {
		if _, ok := allowedExecArgs[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	args := make([]string, len(base), len(base)+len(keys)*2)
	copy(args, base)
	for _, key := range keys {
		args = append(args, allowedExecArgs[key], requested[key])
	}
	return args
}
