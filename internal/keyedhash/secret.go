package keyedhash

import (
	"fmt"

	"piiindex/internal/core"
)

// SecretVersion is a loaded secret paired with the version number it was
// provisioned under. Rotation is modeled as a sequence of
// SecretVersions, never a live pair of simultaneously active secrets: only
// the current, highest version is ever loaded into a Hasher at once.
type SecretVersion struct {
	Version int
	Secret  []byte
}

// SecretSource abstracts where secret material comes from, so callers can
// back it with an env var, a mounted file, or a KMS client without this
// package knowing which. Deliberately minimal: a thin seam for external
// secret-management collaborators, nothing more.
type SecretSource interface {
	// Current returns the active secret version. Returns
	// core.ErrSecretMissing if none is provisioned.
	Current() (SecretVersion, error)
}

// StaticSecretSource is a SecretSource backed by a single fixed secret,
// suitable for config-file or env-var provisioning.
type StaticSecretSource struct {
	version SecretVersion
}

// NewStaticSecretSource wraps a single secret as a SecretSource.
func NewStaticSecretSource(secret []byte, version int) StaticSecretSource {
	return StaticSecretSource{version: SecretVersion{Version: version, Secret: secret}}
}

// Current implements SecretSource.
func (s StaticSecretSource) Current() (SecretVersion, error) {
	if len(s.version.Secret) == 0 {
		return SecretVersion{}, core.ErrSecretMissing
	}
	return s.version, nil
}

// FromSource builds a Hasher from whatever secret a SecretSource currently
// reports as active. Rotating to a new version means constructing a new
// Hasher from a new source and rebuilding the index from plaintext with
// it: operating two active secrets against one index at once is not
// supported, so this package offers no in-place re-key operation.
func FromSource(src SecretSource) (*Hasher, error) {
	sv, err := src.Current()
	if err != nil {
		return nil, fmt.Errorf("load active secret: %w", err)
	}
	return New(sv.Secret, sv.Version)
}
