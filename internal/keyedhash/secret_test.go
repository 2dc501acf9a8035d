package keyedhash_test

import (
	"errors"
	"testing"

	"piiindex/internal/core"
	"piiindex/internal/keyedhash"
)

func TestStaticSecretSource_Current(t *testing.T) {
	src := keyedhash.NewStaticSecretSource([]byte("secret-material"), 3)
	sv, err := src.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if sv.Version != 3 {
		t.Errorf("Version: got %d, want 3", sv.Version)
	}
	if string(sv.Secret) != "secret-material" {
		t.Errorf("Secret: got %q", sv.Secret)
	}
}

func TestStaticSecretSource_EmptySecretErrors(t *testing.T) {
	src := keyedhash.NewStaticSecretSource(nil, 1)
	_, err := src.Current()
	if !errors.Is(err, core.ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
}

func TestFromSource_BuildsHasher(t *testing.T) {
	src := keyedhash.NewStaticSecretSource([]byte("secret-material"), 2)
	h, err := keyedhash.FromSource(src)
	if err != nil {
		t.Fatalf("FromSource: %v", err)
	}
	if h.Version() != 2 {
		t.Errorf("Version: got %d, want 2", h.Version())
	}
}

func TestFromSource_PropagatesMissingSecret(t *testing.T) {
	src := keyedhash.NewStaticSecretSource(nil, 1)
	_, err := keyedhash.FromSource(src)
	if !errors.Is(err, core.ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
}

func TestHasher_SumIsDeterministic(t *testing.T) {
	h, err := keyedhash.New([]byte("secret-material"), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := h.SumString("alice|x")
	b := h.SumString("alice|x")
	if a != b {
		t.Errorf("expected deterministic output, got %q and %q", a, b)
	}
}

func TestHasher_DomainSeparatesByAlias(t *testing.T) {
	h, err := keyedhash.New([]byte("secret-material"), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := h.SumString("email|alice")
	b := h.SumString("phone|alice")
	if a == b {
		t.Error("expected different hashes across message prefixes")
	}
}
