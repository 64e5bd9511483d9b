package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sells-group/pricing-cli/internal/model"
)

// ValidationError describes why one input row was rejected.
type ValidationError struct {
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Plain or comma-grouped decimal, optional sign, no exponent.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+|\d{1,3}(,\d{3})+)?(\.\d+)?$`)

// ValidateRecord turns a raw record into a typed row. Checks run in a fixed
// order and the first failure is returned.
func ValidateRecord(tenantID uuid.UUID, rec model.RawRecord) (model.ValidatedPricingRow, error) {
	fail := func(format string, args ...any) (model.ValidatedPricingRow, error) {
		return model.ValidatedPricingRow{}, &ValidationError{Row: rec.Row, Reason: fmt.Sprintf(format, args...)}
	}

	routeCode, _ := rec.Get(model.ColRouteCode)
	seasonCode, _ := rec.Get(model.ColSeasonCode)
	dateText, _ := rec.Get(model.ColDate)
	econPriceText, _ := rec.Get(model.ColEconomyPrice)
	bizPriceText, _ := rec.Get(model.ColBusinessPrice)
	econSeatsText, _ := rec.Get(model.ColEconomySeats)
	bizSeatsText, _ := rec.Get(model.ColBusinessSeats)

	if routeCode == "" {
		return fail("RouteCode is required.")
	}
	if seasonCode == "" {
		return fail("SeasonCode is required.")
	}
	if dateText == "" {
		return fail("Date is required.")
	}

	date, err := model.ParseDate(dateText)
	if err != nil {
		return fail("Invalid Date '%s'. Expected yyyy-MM-dd.", dateText)
	}

	econPrice, ok := parseDecimal(econPriceText)
	if !ok {
		return fail("EconomyPrice invalid '%s'.", econPriceText)
	}
	bizPrice, ok := parseDecimal(bizPriceText)
	if !ok {
		return fail("BusinessPrice invalid '%s'.", bizPriceText)
	}
	econSeats, ok := parseInt(econSeatsText)
	if !ok {
		return fail("EconomySeats invalid '%s'.", econSeatsText)
	}
	bizSeats, ok := parseInt(bizSeatsText)
	if !ok {
		return fail("BusinessSeats invalid '%s'.", bizSeatsText)
	}

	if econPrice.IsNegative() || bizPrice.IsNegative() {
		return fail("Prices must be >= 0.")
	}
	if econSeats < 0 || bizSeats < 0 {
		return fail("Seats must be >= 0.")
	}

	return model.ValidatedPricingRow{
		TenantID:      tenantID,
		RouteCode:     routeCode,
		SeasonCode:    seasonCode,
		Date:          date,
		EconomyPrice:  econPrice,
		BusinessPrice: bizPrice,
		EconomySeats:  econSeats,
		BusinessSeats: bizSeats,
	}, nil
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" || !decimalPattern.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseInt accepts an optionally signed base-10 integer that fits 32 bits.
func parseInt(s string) (int, bool) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}
