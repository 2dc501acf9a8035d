package indexer_test

import (
	"context"
	"testing"
	"time"

	"piiindex/internal/core"
	"piiindex/internal/fragment"
	"piiindex/internal/indexer"
	"piiindex/internal/keyedhash"
	"piiindex/internal/keys"
	"piiindex/internal/store"
)

func newHasher(t *testing.T) *keyedhash.Hasher {
	t.Helper()
	h, err := keyedhash.New([]byte("test-secret-material-0123456789"), 1)
	if err != nil {
		t.Fatalf("keyedhash.New: %v", err)
	}
	return h
}

func TestIndexValue_PopulatesEveryFragmentKey(t *testing.T) {
	h := newHasher(t)
	s := store.NewMemory(0)
	ix := indexer.New(h, s, 3, 4)

	future := time.Now().Add(time.Hour)
	ref := core.Reference("T1")
	if err := ix.IndexValue(context.Background(), core.FieldEmail, "alice@example.com", ref, future); err != nil {
		t.Fatalf("IndexValue: %v", err)
	}

	alias, _ := core.FieldEmail.Alias()
	eqKey := keys.Derive(h, alias, string(core.OpEquals), "alice@example.com")
	refs, err := s.Lookup(context.Background(), eqKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !refs.Has(ref) {
		t.Errorf("expected eq key to contain ref, got %v", refs)
	}
}

func TestIndexValue_EmptyAfterNormalizationIsSkipped(t *testing.T) {
	h := newHasher(t)
	s := store.NewMemory(0)
	ix := indexer.New(h, s, 3, 4)

	if err := ix.IndexValue(context.Background(), core.FieldFirstName, "   ", core.Reference("T1"), time.Time{}); err != nil {
		t.Fatalf("IndexValue should not error on empty value: %v", err)
	}
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalKeys != 0 {
		t.Errorf("expected no keys written, got %d", st.TotalKeys)
	}
}

func TestIndexUntagged_InfersField(t *testing.T) {
	h := newHasher(t)
	s := store.NewMemory(0)
	ix := indexer.New(h, s, 3, 4)

	err := ix.IndexUntagged(context.Background(), "bob@example.org", core.Reference("T2"), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("IndexUntagged: %v", err)
	}

	alias, _ := core.FieldEmail.Alias()
	eqKey := keys.Derive(h, alias, string(core.OpEquals), "bob@example.org")
	refs, err := s.Lookup(context.Background(), eqKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !refs.Has(core.Reference("T2")) {
		t.Errorf("expected inferred email field to be indexed, got %v", refs)
	}
}

func TestIndexUntagged_NoMatchReturnsUnknownField(t *testing.T) {
	h := newHasher(t)
	s := store.NewMemory(0)
	ix := indexer.New(h, s, 3, 4)

	err := ix.IndexUntagged(context.Background(), "???", core.Reference("T3"), time.Now())
	if err == nil {
		t.Fatal("expected an error for an unclassifiable value")
	}
}

func TestErase_RetractsEveryFragment(t *testing.T) {
	h := newHasher(t)
	s := store.NewMemory(0)
	ix := indexer.New(h, s, 3, 4)
	ctx := context.Background()
	ref := core.Reference("T1")
	future := time.Now().Add(time.Hour)

	if err := ix.IndexValue(ctx, core.FieldEmail, "alice@example.com", ref, future); err != nil {
		t.Fatalf("IndexValue: %v", err)
	}
	if err := ix.Erase(ctx, core.FieldEmail, "alice@example.com", ref); err != nil {
		t.Fatalf("Erase: %v", err)
	}

	alias, _ := core.FieldEmail.Alias()
	eqKey := keys.Derive(h, alias, string(core.OpEquals), "alice@example.com")
	refs, err := s.Lookup(ctx, eqKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no refs after erase, got %v", refs)
	}
}

// overflowStore always refuses AddBatch, to exercise the remediation path.
type overflowStore struct {
	store.Store
}

func (overflowStore) AddBatch(_ context.Context, _ []store.BatchEntry) error {
	return core.ErrPostingOverflow
}

func TestIndexValue_OverflowRecordsToRemediationLedger(t *testing.T) {
	h := newHasher(t)
	dir := t.TempDir()
	ledger, err := store.OpenRemediationLedger(dir + "/remediation.db")
	if err != nil {
		t.Fatalf("OpenRemediationLedger: %v", err)
	}
	defer ledger.Close() //nolint:errcheck

	base := store.NewMemory(0)
	s := overflowStore{Store: base}
	ix := indexer.New(h, s, 3, 4, indexer.WithRemediationLedger(ledger))

	err = ix.IndexValue(context.Background(), core.FieldEmail, "alice@example.com", core.Reference("T1"), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected overflow error to propagate")
	}

	entries, err := ledger.All()
	if err != nil {
		t.Fatalf("ledger.All: %v", err)
	}
	expected := len(fragment.Enumerate("alice@example.com", 3))
	if len(entries) != expected {
		t.Errorf("expected %d remediation entries, got %d", expected, len(entries))
	}
}
