// Package evaluator implements the predicate evaluator: translating
// one (field, operator, query) predicate into an index-key list via the
// key deriver and fragment enumerator in reverse, then resolving it to a
// reference set through the index store.
package evaluator

import (
	"context"
	"fmt"

	"piiindex/internal/core"
	"piiindex/internal/fragment"
	"piiindex/internal/keyedhash"
	"piiindex/internal/normalizer"
	"piiindex/internal/store"
)

// Predicate is one (field, operator, query) triple, the unit the evaluator
// and the Boolean composer both operate on.
type Predicate struct {
	Field    core.Field
	Operator core.Operator
	Query    string
}

// Evaluator resolves predicates against an index store.
type Evaluator struct {
	hasher    *keyedhash.Hasher
	store     store.Store
	gramWidth int
}

// New builds an Evaluator bound to one store and one gram width.
func New(h *keyedhash.Hasher, s store.Store, gramWidth int) *Evaluator {
	return &Evaluator{hasher: h, store: s, gramWidth: gramWidth}
}

// Evaluate resolves one predicate to a reference set, following the
// seven steps: resolve the field, validate the operator, normalize the
// query, derive keys, then either return the empty set, a single lookup,
// or an intersection. The evaluator never half-reports: a failing key
// lookup fails the whole predicate.
func (e *Evaluator) Evaluate(ctx context.Context, p Predicate) (core.RefSet, error) {
	alias, ok := p.Field.Alias()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownField, p.Field)
	}
	if !p.Operator.IsValid() {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownOperator, p.Operator)
	}

	q := normalizer.Normalize(p.Query)
	keys, err := fragment.QueryKeys(e.hasher, alias, p.Operator, q, e.gramWidth)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return core.RefSet{}, nil
	}
	if len(keys) == 1 {
		refs, err := e.store.Lookup(ctx, keys[0])
		if err != nil {
			return nil, fmt.Errorf("lookup predicate %s %s %q: %w", p.Field, p.Operator, p.Query, err)
		}
		return refs, nil
	}

	refs, err := e.store.Intersect(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("intersect predicate %s %s %q: %w", p.Field, p.Operator, p.Query, err)
	}
	return refs, nil
}
