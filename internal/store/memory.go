package store

import (
	"context"
	"sync"
	"time"

	"piiindex/internal/core"
)

// memEntry is the in-memory representation of one index-key's posting
// list. Its own mutex lets concurrent Add calls against different keys,
// or even the same key, proceed without contending on the whole store.
type memEntry struct {
	mu        sync.Mutex
	refs      core.RefSet
	fieldTag  string
	createdAt time.Time
	expiresAt time.Time
}

// memoryStore is the in-memory Store backend: ideal when the whole index
// fits in RAM. Lookup is a single map probe; Intersect runs in native
// Go-map intersection time.
type memoryStore struct {
	mu          sync.RWMutex
	entries     map[string]*memEntry
	maxPosting  int // 0 = unbounded
}

// NewMemory returns an empty in-memory Store. maxPosting bounds the
// posting-list size per key; 0 disables the bound.
func NewMemory(maxPosting int) Store {
	return &memoryStore{
		entries:    make(map[string]*memEntry),
		maxPosting: maxPosting,
	}
}

func (s *memoryStore) Add(_ context.Context, key string, ref core.Reference, fieldTag string, expiresAt time.Time) error {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		if e, ok = s.entries[key]; !ok {
			e = &memEntry{
				refs:      make(core.RefSet),
				fieldTag:  fieldTag,
				createdAt: now,
				expiresAt: expiresAt,
			}
			s.entries[key] = e
		}
		s.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.maxPosting > 0 && len(e.refs) >= s.maxPosting {
		if _, already := e.refs[ref]; !already {
			return core.ErrPostingOverflow
		}
	}
	e.refs.Add(ref)
	if expiresAt.After(e.expiresAt) {
		e.expiresAt = expiresAt
	}
	return nil
}

// AddBatch holds the store's write lock for the whole batch so that no
// concurrent Lookup/Intersect (which take the same RWMutex as a reader)
// can observe a partial write — the coarse-grained price of giving every
// value's write per-value atomicity. Batches are small (one value's
// fragment count), so this does not meaningfully serialize unrelated
// writers for long.
func (s *memoryStore) AddBatch(_ context.Context, entries []BatchEntry) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Pre-check overflow for brand-new refs before mutating anything, so
	// a mid-batch failure never leaves a partially applied value visible.
	for _, be := range entries {
		e, ok := s.entries[be.Key]
		if !ok {
			continue
		}
		e.mu.Lock()
		full := s.maxPosting > 0 && len(e.refs) >= s.maxPosting && !e.refs.Has(be.Ref)
		e.mu.Unlock()
		if full {
			return core.ErrPostingOverflow
		}
	}

	for _, be := range entries {
		e, ok := s.entries[be.Key]
		if !ok {
			e = &memEntry{
				refs:      make(core.RefSet),
				fieldTag:  be.FieldTag,
				createdAt: now,
				expiresAt: be.ExpiresAt,
			}
			s.entries[be.Key] = e
		}
		e.mu.Lock()
		e.refs.Add(be.Ref)
		if be.ExpiresAt.After(e.expiresAt) {
			e.expiresAt = be.ExpiresAt
		}
		e.mu.Unlock()
	}
	return nil
}

// RemoveBatch is AddBatch's erasure counterpart: one store-wide lock for
// the whole set of fragment keys belonging to a value being erased.
func (s *memoryStore) RemoveBatch(_ context.Context, entries []BatchEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, be := range entries {
		e, ok := s.entries[be.Key]
		if !ok {
			continue
		}
		e.mu.Lock()
		e.refs.Remove(be.Ref)
		empty := len(e.refs) == 0
		e.mu.Unlock()
		if empty {
			delete(s.entries, be.Key)
		}
	}
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string, ref core.Reference) error {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	e.refs.Remove(ref)
	empty := len(e.refs) == 0
	e.mu.Unlock()

	if empty {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur == e {
			cur.mu.Lock()
			stillEmpty := len(cur.refs) == 0
			cur.mu.Unlock()
			if stillEmpty {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *memoryStore) Lookup(_ context.Context, key string) (core.RefSet, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return core.RefSet{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.expiresAt.IsZero() && !time.Now().Before(e.expiresAt) {
		return core.RefSet{}, nil
	}
	return e.refs.Clone(), nil
}

// Intersect holds the store's read lock for the whole call, rather than
// calling Lookup once per key (each of which takes and releases its own
// lock), so a concurrent AddBatch/RemoveBatch can never land between two
// of this call's per-key reads and mix pre- and post-write state across
// keys. The composed result always reflects one logical instant.
func (s *memoryStore) Intersect(_ context.Context, keys []string) (core.RefSet, error) {
	if len(keys) == 0 {
		return core.RefSet{}, nil
	}
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sets := make([]core.RefSet, 0, len(keys))
	for _, k := range keys {
		e, ok := s.entries[k]
		if !ok {
			sets = append(sets, core.RefSet{})
			continue
		}
		e.mu.Lock()
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			sets = append(sets, core.RefSet{})
		} else {
			sets = append(sets, e.refs.Clone())
		}
		e.mu.Unlock()
	}
	return core.Intersect(sets...), nil
}

func (s *memoryStore) ExpireSweep(_ context.Context, now time.Time) (int, error) {
	var expiredKeys []string

	s.mu.RLock()
	for k, e := range s.entries {
		e.mu.Lock()
		expired := !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
		e.mu.Unlock()
		if expired {
			expiredKeys = append(expiredKeys, k)
		}
	}
	s.mu.RUnlock()

	if len(expiredKeys) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, k := range expiredKeys {
		if e, ok := s.entries[k]; ok {
			e.mu.Lock()
			stillExpired := !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
			e.mu.Unlock()
			if stillExpired {
				delete(s.entries, k)
				count++
			}
		}
	}
	return count, nil
}

func (s *memoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{PerTagCounts: make(map[string]int)}
	now := time.Now()
	for k, e := range s.entries {
		e.mu.Lock()
		expired := !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
		created := e.createdAt
		e.mu.Unlock()

		st.TotalKeys++
		if expired {
			st.ExpiredPending++
		}
		if _, tag, _, ok := parseTag(k); ok {
			st.PerTagCounts[tag]++
		}
		if st.Oldest.IsZero() || created.Before(st.Oldest) {
			st.Oldest = created
		}
		if created.After(st.Newest) {
			st.Newest = created
		}
	}
	return st, nil
}

func (s *memoryStore) Close() error { return nil }

// parseTag splits a wire-format index key into its parts for the
// in-memory backend's Stats, the same split keys.Parse performs for the
// sqlite backend. Keys that do not have the wire shape are not counted
// per tag; stats are a best-effort diagnostic, not a correctness-critical
// path.
func parseTag(key string) (alias, tag, hash string, ok bool) {
	// "idx:<alias>:<tag>:<hash>"
	parts := splitN(key, ':', 4)
	if len(parts) != 4 || parts[0] != "idx" {
		return "", "", "", false
	}
	return parts[1], parts[2], parts[3], true
}

func splitN(s string, sep byte, n int) []string {
	out := make([]string, 0, n)
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
