package keys_test

import (
	"strings"
	"testing"

	"piiindex/internal/keyedhash"
	"piiindex/internal/keys"
)

func newHasher(t *testing.T) *keyedhash.Hasher {
	t.Helper()
	h, err := keyedhash.New([]byte("test-secret"), 1)
	if err != nil {
		t.Fatalf("keyedhash.New: %v", err)
	}
	return h
}

func TestDerive_WireFormat(t *testing.T) {
	h := newHasher(t)
	k := keys.Derive(h, "email", "eq", "alice@example.com")
	parts := strings.Split(k, ":")
	if len(parts) != 4 {
		t.Fatalf("expected 4 colon-separated parts, got %d: %q", len(parts), k)
	}
	if parts[0] != "idx" || parts[1] != "email" || parts[2] != "eq" {
		t.Errorf("unexpected key structure: %q", k)
	}
}

func TestDerive_Deterministic(t *testing.T) {
	h := newHasher(t)
	a := keys.Derive(h, "email", "eq", "alice@example.com")
	b := keys.Derive(h, "email", "eq", "alice@example.com")
	if a != b {
		t.Errorf("expected the same key twice, got %q and %q", a, b)
	}
}

func TestDerive_DomainSeparatesAcrossFields(t *testing.T) {
	h := newHasher(t)
	a := keys.Derive(h, "email", "eq", "alice")
	b := keys.Derive(h, "phone", "eq", "alice")
	if a == b {
		t.Error("expected different keys across fields for the same fragment")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	h := newHasher(t)
	k := keys.Derive(h, "email", "g3", "fragment")
	alias, tag, hash, ok := keys.Parse(k)
	if !ok {
		t.Fatal("expected Parse to succeed on a well-formed key")
	}
	if alias != "email" || tag != "g3" || hash == "" {
		t.Errorf("got alias=%q tag=%q hash=%q", alias, tag, hash)
	}
}

func TestParse_RejectsMalformed(t *testing.T) {
	_, _, _, ok := keys.Parse("not-a-key")
	if ok {
		t.Error("expected Parse to reject a malformed key")
	}
}
