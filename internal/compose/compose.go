// Package compose implements the Boolean composer: folding a list of
// already-evaluated predicate results by set intersection (AND) or union
// (OR), one level deep. Callers decompose deeper Boolean trees into
// conjunctive or disjunctive normal form externally.
package compose

import (
	"fmt"

	"piiindex/internal/core"
)

// Op is the top-level Boolean operator a composition applies.
type Op string

// Supported composition operators.
const (
	And Op = "AND"
	Or  Op = "OR"
)

// Compose folds results, a slice of predicate result sets, with op. An
// empty results slice yields an empty set for either operator — there is
// nothing to intersect or union. Fold is associative: Compose(op, a, b, c)
// equals Compose(op, Compose(op, a, b), c).
func Compose(op Op, results ...core.RefSet) (core.RefSet, error) {
	if len(results) == 0 {
		return core.RefSet{}, nil
	}
	switch op {
	case And:
		return core.Intersect(results...), nil
	case Or:
		return core.Union(results...), nil
	default:
		return nil, fmt.Errorf("%w: unknown composition operator %q", core.ErrInvalidInput, op)
	}
}
