/*
period.go - Planning periods and period keys

PURPOSE:
  A production plan targets a period: a calendar month, quarter, or year.
  Periods are identified by string keys so they can be used directly as
  database key columns and URL parameters:

    MONTH    "2024-05"
    QUARTER  "2024-Q2"
    YEAR     "2024"

  This package owns parsing, validation, and formatting of those keys.
  Everything else (plan storage, reporting) treats keys as opaque strings
  once validated.

VERSION LINEAGE:
  Plans sharing the same (farm, plot-or-null, rubber type, period type,
  period key) form a lineage, differing only by version number. The row
  with the highest version is the authoritative "current" plan. The SQL
  that selects it lives in store/sqlite; LineageKey here names the tuple.

SEE ALSO:
  - store/sqlite/plans.go: versioning engine built on these keys
  - report/report.go: dashboard keyed by the current month
*/
package planning

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodType defines the granularity of a plan period.
type PeriodType string

const (
	PeriodMonth   PeriodType = "MONTH"
	PeriodQuarter PeriodType = "QUARTER"
	PeriodYear    PeriodType = "YEAR"
)

// ParsePeriodType validates a raw string from the API or database.
func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodType(s) {
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return PeriodType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriodType, s)
}

// ValidateKey checks that key matches the format for the period type.
func ValidateKey(pt PeriodType, key string) error {
	switch pt {
	case PeriodMonth:
		if _, err := time.Parse("2006-01", key); err != nil {
			return fmt.Errorf("%w: MONTH key %q (want YYYY-MM)", ErrInvalidPeriodKey, key)
		}
	case PeriodQuarter:
		var year, q int
		if n, err := fmt.Sscanf(key, "%4d-Q%1d", &year, &q); n != 2 || err != nil || q < 1 || q > 4 || len(key) != 7 {
			return fmt.Errorf("%w: QUARTER key %q (want YYYY-Qn)", ErrInvalidPeriodKey, key)
		}
	case PeriodYear:
		if _, err := time.Parse("2006", key); err != nil || len(key) != 4 {
			return fmt.Errorf("%w: YEAR key %q (want YYYY)", ErrInvalidPeriodKey, key)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPeriodType, string(pt))
	}
	return nil
}

// KeyFor returns the period key containing the given date.
func KeyFor(pt PeriodType, t time.Time) string {
	switch pt {
	case PeriodMonth:
		return t.Format("2006-01")
	case PeriodQuarter:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case PeriodYear:
		return t.Format("2006")
	}
	return ""
}

// MonthKey is shorthand for the dashboard's month bucket.
func MonthKey(t time.Time) string {
	return KeyFor(PeriodMonth, t)
}

// Range returns the first and last calendar day covered by a period key.
func Range(pt PeriodType, key string) (start, end time.Time, err error) {
	if err = ValidateKey(pt, key); err != nil {
		return
	}
	switch pt {
	case PeriodMonth:
		start, _ = time.Parse("2006-01", key)
		end = start.AddDate(0, 1, -1)
	case PeriodQuarter:
		var year, q int
		fmt.Sscanf(key, "%4d-Q%1d", &year, &q)
		start = time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 3, -1)
	case PeriodYear:
		start, _ = time.Parse("2006", key)
		end = start.AddDate(1, 0, -1)
	}
	return
}

// Contains reports whether the calendar date falls inside the period key.
func Contains(pt PeriodType, key string, t time.Time) bool {
	return KeyFor(pt, t) == key || withinRange(pt, key, t)
}

func withinRange(pt PeriodType, key string, t time.Time) bool {
	start, end, err := Range(pt, key)
	if err != nil {
		return false
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(start) && !day.After(end)
}

// LineageKey names a plan version lineage. Rows sharing a LineageKey differ
// only by version; the max version is the current plan.
type LineageKey struct {
	FarmID       int64
	PlotID       *int64 // nil = farm-level plan
	RubberTypeID int64
	PeriodType   PeriodType
	PeriodKey    string
}

// Plan is one row of a version lineage.
type Plan struct {
	ID           int64
	FarmID       int64
	PlotID       *int64
	RubberTypeID int64
	PeriodType   PeriodType
	PeriodKey    string
	Version      int64
	PlannedQty   decimal.Decimal
	Note         string
}

// Lineage returns the plan's lineage key.
func (p Plan) Lineage() LineageKey {
	return LineageKey{
		FarmID:       p.FarmID,
		PlotID:       p.PlotID,
		RubberTypeID: p.RubberTypeID,
		PeriodType:   p.PeriodType,
		PeriodKey:    p.PeriodKey,
	}
}
