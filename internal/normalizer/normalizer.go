// Package normalizer implements the deterministic canonicalization
// every fragment and query passes through before it ever reaches the keyed
// hash. Two values that differ only by case, Unicode compatibility
// variants, or surrounding whitespace must normalize identically.
//
// Compatibility decomposition/composition and locale-independent case
// folding are delegated to golang.org/x/text.
package normalizer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// folder performs locale-independent case folding. A package-level value
// is safe for concurrent use; cases.Caser carries no mutable state once
// constructed.
var folder = cases.Fold()

// Normalize canonicalizes s: NFKC compatibility decomposition followed by
// recomposition, Unicode case folding, then trims leading/trailing
// whitespace. Internal whitespace is preserved. Never fails: an empty or
// whitespace-only input yields an empty string, which callers treat as "do
// not index / do not query".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded := norm.NFKC.String(s)
	folded = folder.String(folded)
	return strings.TrimSpace(folded)
}

// Reverse returns the code-point reversal of s, used to derive suffix
// fragments and suffix queries from the same prefix machinery.
func Reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
