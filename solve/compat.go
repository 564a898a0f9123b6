// Package solve implements the stateful backtracking search over package
// and variable requests (spec.md §4.9): State/Decision/Change model the
// search graph, Validators classify each candidate as Compatible or
// Incompatible(reason), and Solver drives the search to a Solution.
// Grounded on
// _examples/original_source/crates/spk-solve/crates/graph/src/graph_test.rs
// (State/Decision/Change shape) and
// crates/validation/src/validators/*.rs (validator pipeline).
package solve

import "fmt"

// Compatibility is a two-variant sum, not an error: an Incompatible result
// is an expected outcome that drives backtracking, never a failure to
// report (spec.md §4.9 "a Compatibility::Incompatible(reason) value type
// used internally, not an error").
type Compatibility struct {
	reason string // "" means Compatible
}

// Compatible is the zero value: the candidate passed this check.
var Compatible = Compatibility{}

// Incompatible reports the candidate failed this check, carrying a reason
// suitable for inclusion in an OutOfOptions explanation.
func Incompatible(format string, args ...any) Compatibility {
	return Compatibility{reason: fmt.Sprintf(format, args...)}
}

func (c Compatibility) IsOk() bool { return c.reason == "" }

func (c Compatibility) String() string {
	if c.reason == "" {
		return "compatible"
	}
	return c.reason
}
