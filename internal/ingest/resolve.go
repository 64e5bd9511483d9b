package ingest

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/store"
)

type memoKey struct {
	dim    model.Dimension
	tenant uuid.UUID
	code   string
}

// Resolver maps dimension codes to ids, creating missing codes. A Resolver
// memoizes lookups and is meant to live for a single ingestion run.
type Resolver struct {
	store store.DimensionStore
	memo  map[memoKey]uuid.UUID
}

// NewResolver returns a resolver with an empty memo.
func NewResolver(ds store.DimensionStore) *Resolver {
	return &Resolver{store: ds, memo: make(map[memoKey]uuid.UUID)}
}

// Resolve returns the id for (tenantID, code), creating it on first use. A
// concurrent creator winning the insert race is answered by re-reading the
// winner's id.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID, dim model.Dimension, code string) (uuid.UUID, error) {
	key := memoKey{dim: dim, tenant: tenantID, code: code}
	if id, ok := r.memo[key]; ok {
		return id, nil
	}

	id, found, err := r.store.FindDimension(ctx, dim, tenantID, code)
	if err != nil {
		return uuid.Nil, eris.Wrapf(err, "ingest: find %s %q", dim, code)
	}
	if !found {
		id, err = r.store.CreateDimension(ctx, dim, tenantID, code)
		switch {
		case err == nil:
		case store.IsDuplicateKey(err):
			id, found, err = r.store.FindDimension(ctx, dim, tenantID, code)
			if err != nil {
				return uuid.Nil, eris.Wrapf(err, "ingest: re-read %s %q", dim, code)
			}
			if !found {
				return uuid.Nil, eris.Errorf("ingest: %s %q rejected as duplicate but not found", dim, code)
			}
		default:
			return uuid.Nil, eris.Wrapf(err, "ingest: create %s %q", dim, code)
		}
	}

	r.memo[key] = id
	return id, nil
}
