// Package model defines the pricing domain types shared by ingestion, storage, and query.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dimension names a tenant-scoped code lookup table.
type Dimension string

const (
	DimensionRoute  Dimension = "route"
	DimensionSeason Dimension = "season"
)

// Table returns the backing table name for the dimension.
func (d Dimension) Table() string {
	switch d {
	case DimensionSeason:
		return "seasons"
	default:
		return "routes"
	}
}

// DimensionRow is a route or season row. (TenantID, Code) is unique and ID
// never changes once assigned.
type DimensionRow struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidatedPricingRow is one raw record after parsing and range checks.
type ValidatedPricingRow struct {
	TenantID      uuid.UUID
	RouteCode     string
	SeasonCode    string
	Date          Date
	EconomyPrice  decimal.Decimal
	BusinessPrice decimal.Decimal
	EconomySeats  int
	BusinessSeats int
}

// FactKey is the uniqueness key of a pricing fact.
type FactKey struct {
	TenantID uuid.UUID
	RouteID  uuid.UUID
	SeasonID uuid.UUID
	Date     Date
}

// PricingFact is a persisted daily price/seat record.
type PricingFact struct {
	ID            int64           `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	RouteID       uuid.UUID       `json:"route_id"`
	SeasonID      uuid.UUID       `json:"season_id"`
	Date          Date            `json:"date"`
	EconomyPrice  decimal.Decimal `json:"economy_price"`
	BusinessPrice decimal.Decimal `json:"business_price"`
	EconomySeats  int             `json:"economy_seats"`
	BusinessSeats int             `json:"business_seats"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Key returns the fact's conflict key.
func (f PricingFact) Key() FactKey {
	return FactKey{TenantID: f.TenantID, RouteID: f.RouteID, SeasonID: f.SeasonID, Date: f.Date}
}

// PricingRow is the read-side projection of a fact joined to its codes.
type PricingRow struct {
	Date          Date            `json:"date"`
	RouteCode     string          `json:"routeCode"`
	SeasonCode    string          `json:"seasonCode"`
	EconomyPrice  decimal.Decimal `json:"economyPrice"`
	BusinessPrice decimal.Decimal `json:"businessPrice"`
	EconomySeats  int             `json:"economySeats"`
	BusinessSeats int             `json:"businessSeats"`
}
