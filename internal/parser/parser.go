// Package parser turns the sandbox tool's textual output into the
// closed-schema domain.TestOutput value. All three parsers are pure
// functions: malformed or empty input yields an empty TestOutput, never a
// parse error, per spec §4.4.
package parser

import "github.com/forgecheck/grader/internal/domain"

// empty is returned for unrecognized or blank input: no field is
// derivable, so every Overall field stays nil rather than guessing zeros.
func empty() domain.TestOutput {
	return domain.TestOutput{}
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }
