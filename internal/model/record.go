package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Input columns, matched case-insensitively after trimming.
const (
	ColRouteCode     = "RouteCode"
	ColSeasonCode    = "SeasonCode"
	ColDate          = "Date"
	ColEconomyPrice  = "EconomyPrice"
	ColBusinessPrice = "BusinessPrice"
	ColEconomySeats  = "EconomySeats"
	ColBusinessSeats = "BusinessSeats"
)

// RawRecord is one decoded input line keyed by header column.
type RawRecord struct {
	// Row is the 1-based line number in the source, the header being row 1.
	Row    int
	fields map[string]string
	order  []string
}

// NormalizeColumn folds a header or lookup name to its matching form.
func NormalizeColumn(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// NewRawRecord zips a header with one data line. Missing trailing cells are
// empty; surplus cells without a header are dropped.
func NewRawRecord(row int, header, cells []string) RawRecord {
	rec := RawRecord{Row: row, fields: make(map[string]string, len(header)), order: make([]string, 0, len(header))}
	for i, h := range header {
		key := NormalizeColumn(h)
		if key == "" {
			continue
		}
		var v string
		if i < len(cells) {
			v = cells[i]
		}
		if _, dup := rec.fields[key]; !dup {
			rec.order = append(rec.order, key)
		}
		rec.fields[key] = v
	}
	return rec
}

// Get returns the trimmed value of a column and whether the column exists.
func (r RawRecord) Get(column string) (string, bool) {
	v, ok := r.fields[NormalizeColumn(column)]
	return strings.TrimSpace(v), ok
}

// Columns returns the normalized column names in header order.
func (r RawRecord) Columns() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
