// Package keys implements the key deriver: the pure mapping from
// (field alias, operator tag, fragment) to the wire-stable index-key
// string "idx:<alias>:<tag>:<hash>".
package keys

import (
	"strings"

	"piiindex/internal/keyedhash"
)

// prefix is the literal index-key prefix. Part of the persisted format;
// never change it without a full index rebuild.
const prefix = "idx"

// sep is the field separator inside the key. The hashed message uses "|"
// between alias and fragment instead (see Derive).
const sep = ":"

// Derive computes the index key for (alias, tag, fragment) using h as the
// keyed-hash primitive. The hashed message is "alias|fragment" so the same
// fragment hashes differently across fields (domain separation).
func Derive(h *keyedhash.Hasher, alias, tag, fragment string) string {
	message := alias + "|" + fragment
	hash := h.SumString(message)
	var b strings.Builder
	b.Grow(len(prefix) + len(sep) + len(alias) + len(sep) + len(tag) + len(sep) + len(hash))
	b.WriteString(prefix)
	b.WriteString(sep)
	b.WriteString(alias)
	b.WriteString(sep)
	b.WriteString(tag)
	b.WriteString(sep)
	b.WriteString(hash)
	return b.String()
}

// Parse splits a well-formed index key into its (alias, tag, hash) parts.
// Returns ok=false if k does not match the "idx:<alias>:<tag>:<hash>"
// shape; used by maintenance tooling (e.g. stats grouped by tag) that only
// needs the non-hashed parts and never needs to invert the hash itself.
func Parse(k string) (alias, tag, hash string, ok bool) {
	parts := strings.SplitN(k, sep, 4)
	if len(parts) != 4 || parts[0] != prefix {
		return "", "", "", false
	}
	return parts[1], parts[2], parts[3], true
}
