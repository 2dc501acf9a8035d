// Package keyedhash implements the keyed-hash fingerprinting primitive:
// a pseudorandom function F(secret, message) -> fixed-length opaque
// string. It is the only primitive from which index keys are derived.
//
// The secret is loaded once at startup and held read-only for the process
// lifetime. Rotation is modeled as a versioned family: a new version
// requires a full rebuild of the index rather than live operation with two
// active secrets.
package keyedhash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"piiindex/internal/core"
)

// Hasher is a keyed pseudorandom function bound to one secret version.
// HMAC-SHA256 is used: it is the textbook, standard-library construction
// for a keyed PRF with standard security guarantees, so no third-party
// substitute is warranted here (see DESIGN.md).
type Hasher struct {
	version int
	secret  []byte
}

// New constructs a Hasher for the given secret, tagged with a version
// number used only for operator-facing diagnostics (index entries
// themselves carry no version marker; rotation rebuilds the whole index).
// Returns core.ErrSecretMissing if secret is empty.
func New(secret []byte, version int) (*Hasher, error) {
	if len(secret) == 0 {
		return nil, core.ErrSecretMissing
	}
	cp := make([]byte, len(secret))
	copy(cp, secret)
	return &Hasher{version: version, secret: cp}, nil
}

// Version returns the secret version this Hasher was constructed with.
func (h *Hasher) Version() int { return h.version }

// Sum computes F(secret, message) and returns the URL-safe, unpadded
// base64 encoding of the 32-byte MAC.
func (h *Hasher) Sum(message []byte) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(message) //nolint:errcheck // hash.Hash.Write never returns an error
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SumString is a convenience wrapper around Sum for string messages.
func (h *Hasher) SumString(message string) string {
	return h.Sum([]byte(message))
}

// String implements fmt.Stringer for diagnostics; never prints the secret.
func (h *Hasher) String() string {
	return fmt.Sprintf("keyedhash.Hasher{version=%d}", h.version)
}
