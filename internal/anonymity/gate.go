// Package anonymity implements the k-anonymity gate: suppressing
// result sets whose cardinality falls inside (0, k_min) to prevent
// single-record re-identification via adversarial query construction.
package anonymity

import "piiindex/internal/core"

// Gate applies a fixed k-anonymity threshold.
type Gate struct {
	kMin int
}

// NewGate builds a Gate at threshold kMin. kMin <= 1 disables suppression
// entirely.
func NewGate(kMin int) Gate {
	return Gate{kMin: kMin}
}

// Result is the gated outcome of a query: either the original reference
// set, or an empty set with Suppressed set to true.
type Result struct {
	Refs       core.RefSet
	Suppressed bool
}

// Apply suppresses refs if its cardinality n satisfies 0 < n < k_min. n=0
// passes through unsuppressed (nothing to protect); n >= k_min passes
// through unsuppressed.
func (g Gate) Apply(refs core.RefSet) Result {
	n := len(refs)
	if n > 0 && n < g.kMin {
		return Result{Refs: core.RefSet{}, Suppressed: true}
	}
	return Result{Refs: refs, Suppressed: false}
}
