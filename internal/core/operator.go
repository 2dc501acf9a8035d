package core

import "strconv"

// Operator is one of the four closed operator tags a predicate may use.
// The literal tag strings appear inside every index key and are part of
// the wire contract.
type Operator string

// Supported operators.
const (
	OpEquals     Operator = "eq"
	OpPrefix     Operator = "pre"
	OpSuffix     Operator = "suf"
	OpContains   Operator = "contains" // query-facing name; indexed under gK tags
)

// GramTag returns the literal index-key tag for an n-gram of width k, e.g.
// "g3" for the canonical K=3.
func GramTag(k int) string {
	return "g" + strconv.Itoa(k)
}

// IsValid reports whether op is one of the four supported operator tags.
func (op Operator) IsValid() bool {
	switch op {
	case OpEquals, OpPrefix, OpSuffix, OpContains:
		return true
	default:
		return false
	}
}
