/*
Package report computes the dashboard and stats aggregations.

PURPOSE:
  Everything here is derived, recomputed on every read, and never
  persisted: daily and month-to-date actual sums, the comparison against
  the current (max-version) plan, completion percentage and dry-ton
  equivalents. The database does the filtering; the decimal arithmetic
  happens here.

CONTRACTS:
  Dashboard(date, farm?) -> per-rubber-type rows + per-plot breakdown.
    actual_today  sum of qty on the given date
    actual_mtd    sum of qty in the date's calendar month through filtering
    plan_m        current farm-level MONTH plan, nil when no farm selected
                  or no plan exists
    completion    nil when plan is nil or zero, else round1(100*mtd/plan)
  Stats(from, to, farm?) -> range sums by (farm, rubber type) and, when a
    farm is selected, by (plot, rubber type); each row carries the dry-ton
    equivalent when a conversion factor resolves.

  Empty matches yield empty slices, never errors; missing sums are zero.
*/
package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rubberfarm/production-engine/conversion"
	"github.com/rubberfarm/production-engine/planning"
)

// Store is the read surface the aggregations need. *sqlite.Store satisfies it.
type Store interface {
	Farms(ctx context.Context) ([]FarmRef, error)
	RubberTypes(ctx context.Context) ([]TypeRef, error)
	ActivePlots(ctx context.Context, farmID int64) ([]PlotRef, error)
	MonthActuals(ctx context.Context, month string, farmID *int64) ([]ActualEntry, error)
	RangeActuals(ctx context.Context, dateFrom, dateTo string, farmID *int64) ([]ActualEntry, error)
	CurrentMonthPlans(ctx context.Context, farmID int64, month string) ([]PlanValue, error)
	Conversions(ctx context.Context, farmID *int64) ([]conversion.Row, error)
}

// FarmRef, TypeRef and PlotRef are the display references joined into rows.
type FarmRef struct {
	ID   int64
	Name string
}

type TypeRef struct {
	ID   int64
	Code string
}

type PlotRef struct {
	ID   int64
	Code string
}

// ActualEntry is one actual row reduced to aggregation dimensions.
type ActualEntry struct {
	FarmID       int64
	PlotID       *int64
	RubberTypeID int64
	Date         string
	Qty          decimal.Decimal
}

// PlanValue is a current-version plan reduced to its value. PlotID nil is a
// farm-level plan.
type PlanValue struct {
	PlotID       *int64
	RubberTypeID int64
	Qty          decimal.Decimal
}

// Row is one dashboard line per rubber type.
type Row struct {
	RubberType    string
	ActualToday   decimal.Decimal
	ActualMTD     decimal.Decimal
	PlanM         *decimal.Decimal
	CompletionPct *float64
}

// PlotRow is one dashboard line per (plot, rubber type).
type PlotRow struct {
	PlotID        int64
	PlotCode      string
	RubberType    string
	ActualToday   decimal.Decimal
	ActualMTD     decimal.Decimal
	PlanM         *decimal.Decimal
	CompletionPct *float64
}

// DashboardData is the full dashboard payload.
type DashboardData struct {
	Date  string
	Month string
	Farms []FarmRef
	Rows  []Row
	Plots []PlotRow
}

// FarmStatsRow is a range sum per (farm, rubber type).
type FarmStatsRow struct {
	FarmID       int64
	FarmName     string
	RubberTypeID int64
	RubberType   string
	Qty          decimal.Decimal
	DryQty       *decimal.Decimal
}

// PlotStatsRow is a range sum per (plot, rubber type); PlotID nil collects
// farm-level entries recorded without a plot.
type PlotStatsRow struct {
	PlotID       *int64
	PlotCode     string
	RubberTypeID int64
	RubberType   string
	Qty          decimal.Decimal
	DryQty       *decimal.Decimal
}

// StatsData is the full stats payload.
type StatsData struct {
	DateFrom string
	DateTo   string
	ByFarm   []FarmStatsRow
	ByPlot   []PlotStatsRow
}

// Dashboard assembles the daily dashboard for a date and optional farm.
func Dashboard(ctx context.Context, st Store, date time.Time, farmID *int64) (DashboardData, error) {
	dateStr := date.Format("2006-01-02")
	month := planning.MonthKey(date)

	data := DashboardData{Date: dateStr, Month: month, Rows: []Row{}, Plots: []PlotRow{}}

	farms, err := st.Farms(ctx)
	if err != nil {
		return data, err
	}
	data.Farms = farms

	types, err := st.RubberTypes(ctx)
	if err != nil {
		return data, err
	}

	actuals, err := st.MonthActuals(ctx, month, farmID)
	if err != nil {
		return data, err
	}

	// Plans only compare within one farm's lineage; without a farm filter
	// there is no single current plan to show.
	var plans []PlanValue
	if farmID != nil {
		if plans, err = st.CurrentMonthPlans(ctx, *farmID, month); err != nil {
			return data, err
		}
	}

	data.Rows = buildRows(dateStr, types, actuals, plans)

	if farmID != nil {
		plots, err := st.ActivePlots(ctx, *farmID)
		if err != nil {
			return data, err
		}
		data.Plots = buildPlotRows(dateStr, types, plots, actuals, plans)
	}

	return data, nil
}

func buildRows(date string, types []TypeRef, actuals []ActualEntry, plans []PlanValue) []Row {
	today := make(map[int64]decimal.Decimal)
	mtd := make(map[int64]decimal.Decimal)
	for _, a := range actuals {
		mtd[a.RubberTypeID] = mtd[a.RubberTypeID].Add(a.Qty)
		if a.Date == date {
			today[a.RubberTypeID] = today[a.RubberTypeID].Add(a.Qty)
		}
	}

	planByType := make(map[int64]decimal.Decimal)
	for _, p := range plans {
		if p.PlotID == nil {
			planByType[p.RubberTypeID] = p.Qty
		}
	}

	rows := make([]Row, 0, len(types))
	for _, rt := range types {
		row := Row{
			RubberType:  rt.Code,
			ActualToday: today[rt.ID],
			ActualMTD:   mtd[rt.ID],
		}
		if plan, ok := planByType[rt.ID]; ok {
			p := plan
			row.PlanM = &p
		}
		row.CompletionPct = CompletionPct(row.ActualMTD, row.PlanM)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RubberType < rows[j].RubberType })
	return rows
}

func buildPlotRows(date string, types []TypeRef, plots []PlotRef, actuals []ActualEntry, plans []PlanValue) []PlotRow {
	type key struct {
		plotID int64
		typeID int64
	}
	today := make(map[key]decimal.Decimal)
	mtd := make(map[key]decimal.Decimal)
	for _, a := range actuals {
		if a.PlotID == nil {
			continue
		}
		k := key{*a.PlotID, a.RubberTypeID}
		mtd[k] = mtd[k].Add(a.Qty)
		if a.Date == date {
			today[k] = today[k].Add(a.Qty)
		}
	}

	planByKey := make(map[key]decimal.Decimal)
	for _, p := range plans {
		if p.PlotID != nil {
			planByKey[key{*p.PlotID, p.RubberTypeID}] = p.Qty
		}
	}

	// Cross-join so plots with no data still appear as placeholder rows.
	rows := make([]PlotRow, 0, len(plots)*len(types))
	for _, plot := range plots {
		for _, rt := range types {
			k := key{plot.ID, rt.ID}
			row := PlotRow{
				PlotID:      plot.ID,
				PlotCode:    plot.Code,
				RubberType:  rt.Code,
				ActualToday: today[k],
				ActualMTD:   mtd[k],
			}
			if plan, ok := planByKey[k]; ok {
				p := plan
				row.PlanM = &p
			}
			row.CompletionPct = CompletionPct(row.ActualMTD, row.PlanM)
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PlotCode != rows[j].PlotCode {
			return rows[i].PlotCode < rows[j].PlotCode
		}
		return rows[i].RubberType < rows[j].RubberType
	})
	return rows
}

// CompletionPct returns round1(100 * actual / plan), or nil when plan is
// nil or zero.
func CompletionPct(actual decimal.Decimal, plan *decimal.Decimal) *float64 {
	if plan == nil || plan.IsZero() {
		return nil
	}
	pct, _ := actual.Mul(decimal.NewFromInt(100)).Div(*plan).Round(1).Float64()
	return &pct
}

// Stats sums actuals over [dateFrom, dateTo] by (farm, rubber type) and,
// when a farm is selected, by (plot, rubber type). Dry quantities use the
// factor resolved as of dateTo.
func Stats(ctx context.Context, st Store, dateFrom, dateTo string, farmID *int64) (StatsData, error) {
	data := StatsData{DateFrom: dateFrom, DateTo: dateTo, ByFarm: []FarmStatsRow{}, ByPlot: []PlotStatsRow{}}

	entries, err := st.RangeActuals(ctx, dateFrom, dateTo, farmID)
	if err != nil {
		return data, err
	}

	farms, err := st.Farms(ctx)
	if err != nil {
		return data, err
	}
	types, err := st.RubberTypes(ctx)
	if err != nil {
		return data, err
	}
	factors, err := st.Conversions(ctx, farmID)
	if err != nil {
		return data, err
	}

	asOf, err := time.Parse("2006-01-02", dateTo)
	if err != nil {
		asOf = time.Now().UTC()
	}

	farmNames := make(map[int64]string, len(farms))
	for _, f := range farms {
		farmNames[f.ID] = f.Name
	}
	typeCodes := make(map[int64]string, len(types))
	for _, t := range types {
		typeCodes[t.ID] = t.Code
	}
	factorsByType := make(map[int64][]conversion.Row)
	for _, c := range factors {
		factorsByType[c.RubberTypeID] = append(factorsByType[c.RubberTypeID], c)
	}
	dryFor := func(rubberTypeID int64, farm *int64, qty decimal.Decimal) *decimal.Decimal {
		res, ok := conversion.Resolve(factorsByType[rubberTypeID], farm, asOf)
		if !ok {
			return nil
		}
		dry := qty.Mul(res.Factor)
		return &dry
	}

	type farmKey struct {
		farmID int64
		typeID int64
	}
	byFarm := make(map[farmKey]decimal.Decimal)
	for _, e := range entries {
		k := farmKey{e.FarmID, e.RubberTypeID}
		byFarm[k] = byFarm[k].Add(e.Qty)
	}
	for k, qty := range byFarm {
		fid := k.farmID
		data.ByFarm = append(data.ByFarm, FarmStatsRow{
			FarmID:       k.farmID,
			FarmName:     farmNames[k.farmID],
			RubberTypeID: k.typeID,
			RubberType:   typeCodes[k.typeID],
			Qty:          qty,
			DryQty:       dryFor(k.typeID, &fid, qty),
		})
	}
	sort.Slice(data.ByFarm, func(i, j int) bool {
		if data.ByFarm[i].FarmName != data.ByFarm[j].FarmName {
			return data.ByFarm[i].FarmName < data.ByFarm[j].FarmName
		}
		return data.ByFarm[i].RubberType < data.ByFarm[j].RubberType
	})

	if farmID == nil {
		return data, nil
	}

	plots, err := st.ActivePlots(ctx, *farmID)
	if err != nil {
		return data, err
	}
	plotCodes := make(map[int64]string, len(plots))
	for _, p := range plots {
		plotCodes[p.ID] = p.Code
	}

	type plotKey struct {
		plotID int64 // 0 = no plot
		typeID int64
	}
	byPlot := make(map[plotKey]decimal.Decimal)
	for _, e := range entries {
		var pid int64
		if e.PlotID != nil {
			pid = *e.PlotID
		}
		k := plotKey{pid, e.RubberTypeID}
		byPlot[k] = byPlot[k].Add(e.Qty)
	}
	for k, qty := range byPlot {
		row := PlotStatsRow{
			RubberTypeID: k.typeID,
			RubberType:   typeCodes[k.typeID],
			Qty:          qty,
			DryQty:       dryFor(k.typeID, farmID, qty),
		}
		if k.plotID != 0 {
			pid := k.plotID
			row.PlotID = &pid
			row.PlotCode = plotCodes[pid]
		}
		data.ByPlot = append(data.ByPlot, row)
	}
	sort.Slice(data.ByPlot, func(i, j int) bool {
		if data.ByPlot[i].PlotCode != data.ByPlot[j].PlotCode {
			return data.ByPlot[i].PlotCode < data.ByPlot[j].PlotCode
		}
		return data.ByPlot[i].RubberType < data.ByPlot[j].RubberType
	})

	return data, nil
}
