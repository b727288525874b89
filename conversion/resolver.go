/*
resolver.go - Dry-conversion factor resolution

PURPOSE:
  A conversion row maps a rubber type to its dry-ton factor from an
  effective date onward. Rows may be farm-specific or system-wide
  (FarmID nil). Multiple rows per (farm, rubber type) form a timeline;
  the row with the greatest effective_from at or before the query date
  is the active one.

SELECTION ORDER:
  1. Farm-specific rows for the requested farm, if any exist.
  2. Otherwise system-wide rows, if any exist.
  3. Otherwise whatever rows exist for the rubber type (last resort:
     another farm's factor is better than none, but the Result marks it
     so callers can surface it).

  Within the chosen set, pick the newest effective_from <= asOf. If every
  row is dated after asOf, pick the newest row anyway and set Fallback.
  Both fallbacks are deliberate: a missing factor renders as "no dry
  conversion known" downstream, and the pickers prefer a dated-but-wrong
  factor over a blank report. Callers that care inspect Result.

PURITY:
  Resolve is a pure function over a slice; loading rows is the store's
  job (see store/sqlite ResolveFactor).
*/
package conversion

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one conversion-factor timeline entry for a rubber type.
type Row struct {
	ID            int64
	FarmID        *int64 // nil = system-wide default
	RubberTypeID  int64
	EffectiveFrom time.Time
	Factor        decimal.Decimal
}

// Scope records which row set the resolver ended up choosing from.
type Scope string

const (
	ScopeFarm    Scope = "farm"    // farm-specific rows
	ScopeDefault Scope = "default" // system-wide rows
	ScopeAny     Scope = "any"     // last resort: any rows for the type
)

// Result is a resolved factor plus enough context to judge it.
type Result struct {
	Factor        decimal.Decimal
	EffectiveFrom time.Time
	Scope         Scope

	// Fallback is true when no row in the chosen set was effective on or
	// before asOf and the newest row was used regardless.
	Fallback bool
}

// Resolve picks the applicable factor from rows for one rubber type.
// farmID nil considers system-wide rows first. Returns ok=false only when
// rows is empty.
func Resolve(rows []Row, farmID *int64, asOf time.Time) (Result, bool) {
	if len(rows) == 0 {
		return Result{}, false
	}

	var farmRows, defaultRows []Row
	for _, r := range rows {
		switch {
		case r.FarmID == nil:
			defaultRows = append(defaultRows, r)
		case farmID != nil && *r.FarmID == *farmID:
			farmRows = append(farmRows, r)
		}
	}

	chosen := rows
	scope := ScopeAny
	switch {
	case farmID != nil && len(farmRows) > 0:
		chosen, scope = farmRows, ScopeFarm
	case len(defaultRows) > 0:
		chosen, scope = defaultRows, ScopeDefault
	}

	// Newest first; id breaks ties between equal dates across farms.
	sorted := make([]Row, len(chosen))
	copy(sorted, chosen)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].EffectiveFrom.Equal(sorted[j].EffectiveFrom) {
			return sorted[i].EffectiveFrom.After(sorted[j].EffectiveFrom)
		}
		return sorted[i].ID > sorted[j].ID
	})

	for _, r := range sorted {
		if !r.EffectiveFrom.After(asOf) {
			return Result{Factor: r.Factor, EffectiveFrom: r.EffectiveFrom, Scope: scope}, true
		}
	}

	// All rows are future-dated relative to asOf.
	top := sorted[0]
	return Result{Factor: top.Factor, EffectiveFrom: top.EffectiveFrom, Scope: scope, Fallback: true}, true
}
