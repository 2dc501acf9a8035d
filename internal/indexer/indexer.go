// Package indexer implements the indexer: orchestration of the
// normalizer, keyed hash, key deriver, and fragment enumerator during
// ingestion, appending the resulting fragment keys to the index store in
// a single atomic batch per value.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"piiindex/internal/core"
	"piiindex/internal/fragment"
	"piiindex/internal/keyedhash"
	"piiindex/internal/keys"
	"piiindex/internal/logger"
	"piiindex/internal/normalizer"
	"piiindex/internal/store"
)

// Indexer drives ingestion. It is safe for concurrent use; callers decide
// their own level of parallelism, bounded by Indexer's backpressure
// semaphore.
type Indexer struct {
	hasher      *keyedhash.Hasher
	store       store.Store
	remediation *store.RemediationLedger
	gramWidth   int
	log         *logger.Logger
	sem         chan struct{}
}

// Option configures an Indexer at construction.
type Option func(*Indexer)

// WithRemediationLedger attaches a ledger that records every write an
// Indexer fails with core.ErrPostingOverflow, so it can be remediated
// offline instead of silently dropped.
func WithRemediationLedger(l *store.RemediationLedger) Option {
	return func(ix *Indexer) { ix.remediation = l }
}

// WithLogger overrides the default logger (module INDEX, level info).
func WithLogger(l *logger.Logger) Option {
	return func(ix *Indexer) { ix.log = l }
}

// New builds an Indexer. gramWidth is the deploy-time K; maxInFlight
// bounds the number of concurrent per-value batches the Indexer admits at
// once, a backpressure semaphore for bulk ingest.
func New(h *keyedhash.Hasher, s store.Store, gramWidth, maxInFlight int, opts ...Option) *Indexer {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	ix := &Indexer{
		hasher:    h,
		store:     s,
		gramWidth: gramWidth,
		log:       logger.New("INDEX", "info"),
		sem:       make(chan struct{}, maxInFlight),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexValue runs the full normalize-enumerate-derive-append pipeline for
// one decrypted field value, appending ref to every resulting key's
// posting list as a single atomic batch.
//
// An empty normalized value is skipped rather than indexed.
func (ix *Indexer) IndexValue(ctx context.Context, field core.Field, plaintext string, ref core.Reference, expiresAt time.Time) error {
	alias, ok := field.Alias()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownField, field)
	}

	select {
	case ix.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: acquiring backpressure slot: %v", core.ErrDeadlineExceeded, ctx.Err())
	}
	defer func() { <-ix.sem }()

	v := normalizer.Normalize(plaintext)
	if v == "" {
		ix.log.Debugf("index_skip", "field=%s ref=%s empty after normalization", field, ref)
		return nil
	}

	fragEntries := fragment.Enumerate(v, ix.gramWidth)
	batch := make([]store.BatchEntry, 0, len(fragEntries))
	for _, fe := range fragEntries {
		key := keys.Derive(ix.hasher, alias, fe.Tag, fe.Fragment)
		batch = append(batch, store.BatchEntry{
			Key:       key,
			Ref:       ref,
			FieldTag:  field.String(),
			ExpiresAt: expiresAt,
		})
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrDeadlineExceeded, err)
	}

	if err := ix.store.AddBatch(ctx, batch); err != nil {
		if ix.remediation != nil && errors.Is(err, core.ErrPostingOverflow) {
			for _, be := range batch {
				_ = ix.remediation.Record(store.RemediationEntry{
					Key:        be.Key,
					Ref:        string(be.Ref),
					FieldTag:   be.FieldTag,
					RejectedAt: time.Now(),
				})
			}
		}
		ix.log.Warnf("index_reject", "field=%s ref=%s: %v", field, ref, err)
		return err
	}

	ix.log.Debugf("index_ok", "field=%s ref=%s fragments=%d", field, ref, len(batch))
	return nil
}

// IndexUntagged infers a Field from plaintext for callers that did not
// tag the value, and indexes it if inference succeeds. Returns
// core.ErrUnknownField if no pattern matches.
func (ix *Indexer) IndexUntagged(ctx context.Context, plaintext string, ref core.Reference, expiresAt time.Time) error {
	field, ok := core.Infer(plaintext)
	if !ok {
		return fmt.Errorf("%w: could not infer field for untagged value", core.ErrUnknownField)
	}
	return ix.IndexValue(ctx, field, plaintext, ref, expiresAt)
}

// Erase retracts every fragment key derived from plaintext under field
// for ref. Updates are modeled as erasure followed by re-index; like
// IndexValue, the whole erasure is one atomic batch.
func (ix *Indexer) Erase(ctx context.Context, field core.Field, plaintext string, ref core.Reference) error {
	alias, ok := field.Alias()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownField, field)
	}

	v := normalizer.Normalize(plaintext)
	if v == "" {
		return nil
	}

	fragEntries := fragment.Enumerate(v, ix.gramWidth)
	batch := make([]store.BatchEntry, 0, len(fragEntries))
	for _, fe := range fragEntries {
		batch = append(batch, store.BatchEntry{
			Key: keys.Derive(ix.hasher, alias, fe.Tag, fe.Fragment),
			Ref: ref,
		})
	}

	if err := ix.store.RemoveBatch(ctx, batch); err != nil {
		return err
	}
	ix.log.Debugf("erase_ok", "field=%s ref=%s fragments=%d", field, ref, len(batch))
	return nil
}
