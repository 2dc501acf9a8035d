package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"

	"piiindex/internal/core"
	"piiindex/internal/keys"
)

// refDelimiter is the fixed delimiter between opaque references inside the
// canonical refs column. Embedded delimiters in a reference are
// forbidden by contract; Add rejects any ref containing it.
const refDelimiter = ","

// sqliteStore is the relational Store backend. The canonical
// index_entries table holds the wire-stable row shape, including the
// comma-delimited refs column. A secondary index_refs junction table (one
// row per key/ref pair) is maintained alongside it so Intersect can be
// expressed as a single grouped IN-clause query, rather than fetching and
// decoding every row's delimited text in application code.
type sqliteStore struct {
	db         *sql.DB
	maxPosting int
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS index_entries (
	key        TEXT PRIMARY KEY,
	refs       TEXT NOT NULL,
	field_tag  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_entries_field_tag ON index_entries(field_tag);
CREATE INDEX IF NOT EXISTS idx_entries_expires_at ON index_entries(expires_at);
CREATE INDEX IF NOT EXISTS idx_entries_expires_field ON index_entries(expires_at, field_tag);

CREATE TABLE IF NOT EXISTS index_refs (
	key TEXT NOT NULL REFERENCES index_entries(key) ON DELETE CASCADE,
	ref TEXT NOT NULL,
	PRIMARY KEY (key, ref)
);
CREATE INDEX IF NOT EXISTS idx_refs_ref ON index_refs(ref);
`

// NewSQLite opens (or creates) a relational Store at dsn, a
// database/sql data source name understood by modernc.org/sqlite (e.g. a
// file path, or ":memory:" for an ephemeral instance used in tests).
// maxPosting bounds the posting-list size per key; 0 disables the bound.
func NewSQLite(dsn string, maxPosting int) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", dsn, err)
	}
	// A single shared connection avoids SQLITE_BUSY under concurrent
	// writers; the store's own locking granularity is per-transaction.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &sqliteStore{db: db, maxPosting: maxPosting}, nil
}

func (s *sqliteStore) Add(ctx context.Context, key string, ref core.Reference, fieldTag string, expiresAt time.Time) error {
	if strings.Contains(string(ref), refDelimiter) {
		return fmt.Errorf("%w: reference contains forbidden delimiter", core.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", core.ErrStoreTransient, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op if already committed

	if err := addOneTx(ctx, tx, key, ref, fieldTag, expiresAt, s.maxPosting); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", core.ErrStoreTransient, err)
	}
	return nil
}

// addOneTx performs one Add's worth of work against an open transaction,
// shared by Add and AddBatch so both compose the same single-entry logic
// under either a one-entry or a multi-entry transaction.
func addOneTx(ctx context.Context, tx *sql.Tx, key string, ref core.Reference, fieldTag string, expiresAt time.Time, maxPosting int) error {
	var existingRefs string
	var existingExpires sql.NullTime
	err := tx.QueryRowContext(ctx,
		`SELECT refs, expires_at FROM index_entries WHERE key = ?`, key,
	).Scan(&existingRefs, &existingExpires)

	switch {
	case err == sql.ErrNoRows:
		if maxPosting == 0 || maxPosting >= 1 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO index_entries (key, refs, field_tag, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
				key, string(ref), fieldTag, time.Now(), toNullTime(expiresAt),
			); err != nil {
				return fmt.Errorf("%w: insert entry: %v", core.ErrStoreTransient, err)
			}
			break
		}
		return core.ErrPostingOverflow
	case err != nil:
		return fmt.Errorf("%w: select entry: %v", core.ErrStoreTransient, err)
	default:
		refSet := splitRefs(existingRefs)
		if _, already := refSet[ref]; !already {
			if maxPosting > 0 && len(refSet) >= maxPosting {
				return core.ErrPostingOverflow
			}
			refSet[ref] = struct{}{}
		}
		newExpires := existingExpires.Time // zero (never expires) when NULL
		if expiresAt.After(newExpires) {
			newExpires = expiresAt
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE index_entries SET refs = ?, expires_at = ? WHERE key = ?`,
			joinRefs(refSet), toNullTime(newExpires), key,
		); err != nil {
			return fmt.Errorf("%w: update entry: %v", core.ErrStoreTransient, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_refs (key, ref) VALUES (?, ?) ON CONFLICT(key, ref) DO NOTHING`,
		key, string(ref),
	); err != nil {
		return fmt.Errorf("%w: insert junction row: %v", core.ErrStoreTransient, err)
	}
	return nil
}

// AddBatch applies every entry inside one transaction, so a concurrent
// reader's query (itself a separate transaction/connection) either sees
// none of the batch or all of it — SQLite's transaction isolation gives
// this for free, unlike the in-memory backend's explicit lock.
func (s *sqliteStore) AddBatch(ctx context.Context, entries []BatchEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin batch tx: %v", core.ErrStoreTransient, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op if already committed

	for _, be := range entries {
		if strings.Contains(string(be.Ref), refDelimiter) {
			return fmt.Errorf("%w: reference contains forbidden delimiter", core.ErrInvalidInput)
		}
		if err := addOneTx(ctx, tx, be.Key, be.Ref, be.FieldTag, be.ExpiresAt, s.maxPosting); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit batch: %v", core.ErrStoreTransient, err)
	}
	return nil
}

// RemoveBatch is AddBatch's erasure counterpart.
func (s *sqliteStore) RemoveBatch(ctx context.Context, entries []BatchEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin batch tx: %v", core.ErrStoreTransient, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op if already committed

	for _, be := range entries {
		if err := removeOneTx(ctx, tx, be.Key, be.Ref); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit batch: %v", core.ErrStoreTransient, err)
	}
	return nil
}

func (s *sqliteStore) Remove(ctx context.Context, key string, ref core.Reference) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", core.ErrStoreTransient, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op if already committed

	if err := removeOneTx(ctx, tx, key, ref); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", core.ErrStoreTransient, err)
	}
	return nil
}

// removeOneTx performs one Remove's worth of work against an open
// transaction, shared by Remove and RemoveBatch.
func removeOneTx(ctx context.Context, tx *sql.Tx, key string, ref core.Reference) error {
	var existingRefs string
	err := tx.QueryRowContext(ctx, `SELECT refs FROM index_entries WHERE key = ?`, key).Scan(&existingRefs)
	if err == sql.ErrNoRows {
		return nil // idempotent: nothing to remove
	}
	if err != nil {
		return fmt.Errorf("%w: select entry: %v", core.ErrStoreTransient, err)
	}

	refSet := splitRefs(existingRefs)
	delete(refSet, ref)

	if _, err := tx.ExecContext(ctx, `DELETE FROM index_refs WHERE key = ? AND ref = ?`, key, string(ref)); err != nil {
		return fmt.Errorf("%w: delete junction row: %v", core.ErrStoreTransient, err)
	}

	if len(refSet) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries WHERE key = ?`, key); err != nil {
			return fmt.Errorf("%w: delete entry: %v", core.ErrStoreTransient, err)
		}
	} else if _, err := tx.ExecContext(ctx, `UPDATE index_entries SET refs = ? WHERE key = ?`, joinRefs(refSet), key); err != nil {
		return fmt.Errorf("%w: update entry: %v", core.ErrStoreTransient, err)
	}
	return nil
}

func (s *sqliteStore) Lookup(ctx context.Context, key string) (core.RefSet, error) {
	var refs string
	err := s.db.QueryRowContext(ctx,
		`SELECT refs FROM index_entries WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`, key, time.Now(),
	).Scan(&refs)
	if err == sql.ErrNoRows {
		return core.RefSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %v", core.ErrStoreTransient, err)
	}
	return core.NewRefSet(toReferences(splitRefsSlice(refs))...), nil
}

func (s *sqliteStore) Intersect(ctx context.Context, inputKeys []string) (core.RefSet, error) {
	if len(inputKeys) == 0 {
		return core.RefSet{}, nil
	}
	// Repeated keys (a contains query with a repeated gram) would make the
	// HAVING count below unreachable, so count each distinct key once.
	seen := make(map[string]struct{}, len(inputKeys))
	distinct := make([]string, 0, len(inputKeys))
	for _, k := range inputKeys {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			distinct = append(distinct, k)
		}
	}
	inputKeys = distinct
	placeholders := make([]string, len(inputKeys))
	args := make([]any, 0, len(inputKeys)*2+1)
	for i, k := range inputKeys {
		placeholders[i] = "?"
		args = append(args, k)
	}
	now := time.Now()
	for _, k := range inputKeys {
		args = append(args, k)
	}
	args = append(args, now)

	// Grouped IN-clause query: count, per ref, how many of the supplied
	// keys it appears under (restricted to unexpired entries), and keep
	// only refs whose count equals the number of keys supplied.
	query := fmt.Sprintf(`
		SELECT ref FROM index_refs
		WHERE key IN (%s)
		  AND key IN (SELECT key FROM index_entries WHERE key IN (%s) AND (expires_at IS NULL OR expires_at > ?))
		GROUP BY ref
		HAVING COUNT(DISTINCT key) = ?`,
		strings.Join(placeholders, ","), strings.Join(placeholders, ","))
	args = append(args, len(inputKeys))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: intersect: %v", core.ErrStoreTransient, err)
	}
	defer rows.Close() //nolint:errcheck // best-effort close on read path

	out := make(core.RefSet)
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("%w: scan ref: %v", core.ErrStoreTransient, err)
		}
		out.Add(core.Reference(ref))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate refs: %v", core.ErrStoreTransient, err)
	}
	return out, nil
}

func (s *sqliteStore) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM index_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: expire sweep: %v", core.ErrStoreTransient, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", core.ErrStoreTransient, err)
	}
	return int(n), nil
}

func (s *sqliteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{PerTagCounts: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT key, created_at, expires_at FROM index_entries`)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: stats scan: %v", core.ErrStoreTransient, err)
	}
	defer rows.Close() //nolint:errcheck // best-effort close on read path

	now := time.Now()
	for rows.Next() {
		var key string
		var created time.Time
		var expires sql.NullTime
		if err := rows.Scan(&key, &created, &expires); err != nil {
			return Stats{}, fmt.Errorf("%w: stats row: %v", core.ErrStoreTransient, err)
		}
		st.TotalKeys++
		if expires.Valid && !now.Before(expires.Time) {
			st.ExpiredPending++
		}
		if _, tag, _, ok := keys.Parse(key); ok {
			st.PerTagCounts[tag]++
		}
		if st.Oldest.IsZero() || created.Before(st.Oldest) {
			st.Oldest = created
		}
		if created.After(st.Newest) {
			st.Newest = created
		}
	}
	return st, rows.Err()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// toNullTime maps the zero time.Time (this store's "never expires"
// sentinel, see cmd/indexctl's expiresAt) onto SQL NULL, so expiry
// comparisons never have to treat year-1 as "already expired".
func toNullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// splitRefs parses a comma-delimited refs column into a set.
func splitRefs(raw string) map[core.Reference]struct{} {
	out := make(map[core.Reference]struct{})
	if raw == "" {
		return out
	}
	for _, r := range strings.Split(raw, refDelimiter) {
		out[core.Reference(r)] = struct{}{}
	}
	return out
}

// splitRefsSlice is splitRefs without the set wrapper, for the common case
// of a read-only scan.
func splitRefsSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, refDelimiter)
}

func toReferences(ss []string) []core.Reference {
	out := make([]core.Reference, len(ss))
	for i, s := range ss {
		out[i] = core.Reference(s)
	}
	return out
}

// joinRefs serializes a ref set back into the canonical delimited column,
// sorted for deterministic test assertions.
func joinRefs(set map[core.Reference]struct{}) string {
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return strings.Join(out, refDelimiter)
}
