// Package fragment implements the fragment enumerator, the heart of
// the design: given a normalized field value it emits every fragment that
// must be indexed so that every supported query operator lands on a
// populated index key, and it mirrors that enumeration on the query side
// so a query ever needs only a handful of key lookups.
package fragment

import (
	"piiindex/internal/core"
	"piiindex/internal/keyedhash"
	"piiindex/internal/keys"
	"piiindex/internal/normalizer"
)

// Entry pairs an operator tag with the fragment that must be hashed under
// it. Tag is always one of core.OpEquals, core.OpPrefix, core.OpSuffix, or
// a gram tag like "g3".
type Entry struct {
	Tag      string
	Fragment string
}

// Enumerate produces every (tag, fragment) pair that must be indexed for
// the already-normalized value v, at gram width k: the value itself, every
// prefix and suffix, and every k-gram. The total fragment count is
// 1 + 2|v| + max(0, |v|-k+1): linear in value length.
func Enumerate(v string, k int) []Entry {
	if v == "" {
		return nil
	}
	runes := []rune(v)
	n := len(runes)

	entries := make([]Entry, 0, 1+2*n+maxInt(0, n-k+1))

	// eq: the whole value, one fragment.
	entries = append(entries, Entry{Tag: string(core.OpEquals), Fragment: v})

	// pre: every non-empty prefix v[0..1], v[0..2], ..., v[0..n].
	for i := 1; i <= n; i++ {
		entries = append(entries, Entry{Tag: string(core.OpPrefix), Fragment: string(runes[:i])})
	}

	// suf: every non-empty prefix of rev(v), i.e. every non-empty suffix
	// of v, expressed the same way the query side expresses endsWith: a
	// prefix of the reversed string.
	rev := normalizer.Reverse(v)
	revRunes := []rune(rev)
	for i := 1; i <= n; i++ {
		entries = append(entries, Entry{Tag: string(core.OpSuffix), Fragment: string(revRunes[:i])})
	}

	// gK: every K-wide sliding window, none if |v| < K.
	if k > 0 && n >= k {
		gramTag := core.GramTag(k)
		for i := 0; i <= n-k; i++ {
			entries = append(entries, Entry{Tag: gramTag, Fragment: string(runes[i : i+k])})
		}
	}

	return entries
}

// IndexKeys derives the full set of index keys for one already-normalized
// field value, ready to hand to the index store's add calls.
func IndexKeys(h *keyedhash.Hasher, alias, v string, k int) []string {
	entries := Enumerate(v, k)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, keys.Derive(h, alias, e.Tag, e.Fragment))
	}
	return out
}

// QueryKeys is the query-side mirror of Enumerate: given an operator and
// an already-normalized query string, it returns the short list of index
// keys that must be looked up (one key, or |q|-K+1 keys for contains).
//
//   - eq q         -> [ key(alias, eq, q) ]
//   - startsWith q -> [ key(alias, pre, q) ]
//   - endsWith q   -> [ key(alias, suf, rev(q)) ]
//   - contains q   -> one key per K-gram of q, or core.ErrQueryTooShort if
//     |q| < K.
//
// An empty, already-normalized query yields no keys for startsWith and
// endsWith, and core.ErrQueryTooShort for contains. For eq it derives
// key(alias, eq, "") like any other fragment; the caller decides what an
// empty eq query means.
func QueryKeys(h *keyedhash.Hasher, alias string, op core.Operator, q string, k int) ([]string, error) {
	switch op {
	case core.OpEquals:
		return []string{keys.Derive(h, alias, string(core.OpEquals), q)}, nil
	case core.OpPrefix:
		if q == "" {
			return nil, nil
		}
		return []string{keys.Derive(h, alias, string(core.OpPrefix), q)}, nil
	case core.OpSuffix:
		if q == "" {
			return nil, nil
		}
		return []string{keys.Derive(h, alias, string(core.OpSuffix), normalizer.Reverse(q))}, nil
	case core.OpContains:
		runes := []rune(q)
		if len(runes) < k {
			return nil, core.ErrQueryTooShort
		}
		gramTag := core.GramTag(k)
		out := make([]string, 0, len(runes)-k+1)
		for i := 0; i <= len(runes)-k; i++ {
			out = append(out, keys.Derive(h, alias, gramTag, string(runes[i:i+k])))
		}
		return out, nil
	default:
		return nil, core.ErrUnknownOperator
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
