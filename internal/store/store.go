// Package store persists route/season dimensions and pricing facts.
//
// Writes go through an explicit repository: batch insert, single insert,
// lookup by conflict key, and in-place update. No pending-write state is held
// between calls.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/model"
)

// ErrNotFound is returned when an update targets a key that does not exist.
var ErrNotFound = eris.New("store: not found")

// DuplicateKeyError reports a unique-constraint rejection from the backing
// store. It is the only write failure the ingestion pipeline recovers from.
type DuplicateKeyError struct {
	Op         string
	Constraint string
	Err        error
}

func (e *DuplicateKeyError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("store: %s: duplicate key (%s)", e.Op, e.Constraint)
	}
	return fmt.Sprintf("store: %s: duplicate key", e.Op)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// IsDuplicateKey reports whether err is, or wraps, a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var dup *DuplicateKeyError
	return errors.As(err, &dup)
}

// DimensionStore looks up and creates tenant-scoped dimension codes.
type DimensionStore interface {
	// FindDimension returns the id for (tenantID, code) and whether it exists.
	FindDimension(ctx context.Context, dim model.Dimension, tenantID uuid.UUID, code string) (uuid.UUID, bool, error)
	// CreateDimension inserts a new code. A concurrent creator winning the race
	// surfaces as a *DuplicateKeyError.
	CreateDimension(ctx context.Context, dim model.Dimension, tenantID uuid.UUID, code string) (uuid.UUID, error)
}

// FactWriter is the unit of work for pricing fact writes.
type FactWriter interface {
	// InsertBatch inserts all facts atomically and returns the number written.
	InsertBatch(ctx context.Context, facts []model.PricingFact) (int, error)
	InsertOne(ctx context.Context, fact model.PricingFact) error
	// FindByKey returns nil when no fact has the key.
	FindByKey(ctx context.Context, key model.FactKey) (*model.PricingFact, error)
	// UpdateOne replaces prices and seats of the fact with fact.Key().
	UpdateOne(ctx context.Context, fact model.PricingFact) error
}

// FactReader serves paged reads joined to dimension codes.
type FactReader interface {
	// ListFacts returns rows ordered by date ascending.
	ListFacts(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]model.PricingRow, error)
	CountFacts(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// Store is the full persistence surface.
type Store interface {
	DimensionStore
	FactWriter
	FactReader

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// factColumns is the insert column order shared by both backends.
var factColumns = []string{
	"tenant_id", "route_id", "season_id", "date",
	"economy_price", "business_price", "economy_seats", "business_seats", "created_at",
}

func factValues(f model.PricingFact) []any {
	return []any{
		f.TenantID, f.RouteID, f.SeasonID, f.Date,
		f.EconomyPrice, f.BusinessPrice, f.EconomySeats, f.BusinessSeats, f.CreatedAt,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFact(row scannable) (*model.PricingFact, error) {
	var f model.PricingFact
	err := row.Scan(&f.ID, &f.TenantID, &f.RouteID, &f.SeasonID, &f.Date,
		&f.EconomyPrice, &f.BusinessPrice, &f.EconomySeats, &f.BusinessSeats, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanPricingRow(row scannable) (model.PricingRow, error) {
	var r model.PricingRow
	err := row.Scan(&r.Date, &r.RouteCode, &r.SeasonCode,
		&r.EconomyPrice, &r.BusinessPrice, &r.EconomySeats, &r.BusinessSeats)
	return r, err
}
