// Package store implements the index store: a backend-independent
// contract for persisting a map from index-key to posting list, with
// per-entry expiry, plus the two interchangeable implementations in scope
// — an in-memory set store and a relational table.
//
// Both backends must answer identical lookups with identical sets for the
// same logical state; the conformance suite in this package's tests
// verifies that equivalence.
package store

import (
	"context"
	"time"

	"piiindex/internal/core"
)

// Entry is the maintenance-facing view of one index-key row: its posting
// list plus the audit/retention metadata that travels with it. No Store
// method returns Entry: Lookup/Intersect deal in bare core.RefSet and
// Stats in aggregate counts.
type Entry struct {
	Key       string
	Refs      core.RefSet
	FieldTag  string // full field name, audit only — plays no role in matching
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Stats summarizes the current state of a backend: total keys, per-tag
// counts, oldest/newest entry timestamps, and how many entries are past
// their expiry but not yet swept.
type Stats struct {
	TotalKeys      int
	PerTagCounts   map[string]int // keyed by operator tag (eq, pre, suf, gK)
	Oldest         time.Time
	Newest         time.Time
	ExpiredPending int
}

// BatchEntry is one (key, ref) write within an AddBatch/RemoveBatch call —
// the unit the indexer uses to make every fragment of a single value's
// index entries appear together, giving per-value atomicity.
type BatchEntry struct {
	Key       string
	Ref       core.Reference
	FieldTag  string
	ExpiresAt time.Time
}

// Store is the backend-independent contract the indexer and the evaluator
// depend on. Implementations must be safe for concurrent use by multiple
// readers and writers.
type Store interface {
	// Add appends ref to the posting list at key, creating the entry if
	// absent. expiresAt is reconciled to the later of the old and new
	// value; fieldTag is recorded only on first creation. Returns
	// core.ErrPostingOverflow if the posting list would exceed the
	// backend's capacity.
	Add(ctx context.Context, key string, ref core.Reference, fieldTag string, expiresAt time.Time) error

	// AddBatch applies every entry as if by Add, but no concurrent Lookup
	// or Intersect may observe a state where only some of the entries are
	// visible: either all of a single call's writes land together, or
	// (on error) the call's effect is rolled back. The indexer uses this
	// for every fragment derived from one ingested value.
	AddBatch(ctx context.Context, entries []BatchEntry) error

	// Remove idempotently deletes ref from key's posting list. An empty
	// posting list left behind is garbage-collected.
	Remove(ctx context.Context, key string, ref core.Reference) error

	// RemoveBatch is the atomic-visibility counterpart of AddBatch, used
	// by erasure to retract every fragment of one value together.
	RemoveBatch(ctx context.Context, entries []BatchEntry) error

	// Lookup returns the posting list for key, or an empty set if the key
	// is absent or expired.
	Lookup(ctx context.Context, key string) (core.RefSet, error)

	// Intersect returns the set intersection of every key's posting list.
	// All keys must be read from a single logical snapshot of the store:
	// a concurrent AddBatch/RemoveBatch must be either fully visible to
	// every key's read or fully invisible to all of them, never visible
	// to some and not others. An empty keys slice yields an empty set.
	Intersect(ctx context.Context, keys []string) (core.RefSet, error)

	// ExpireSweep removes every entry whose expiry is at or before now,
	// returning the number of entries removed.
	ExpireSweep(ctx context.Context, now time.Time) (int, error)

	// Stats returns a point-in-time summary of the backend's state.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources (file handles, connections) held by
	// the backend. Safe to call once during shutdown.
	Close() error
}
