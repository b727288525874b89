package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubberfarm/production-engine/conversion"
	"github.com/rubberfarm/production-engine/planning"
	"github.com/rubberfarm/production-engine/report"
	"github.com/rubberfarm/production-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func addActual(t *testing.T, s *sqlite.Store, farmID int64, plotID *int64, typeID int64, date, amount string) {
	t.Helper()
	_, _, err := s.UpsertActual(context.Background(), sqlite.Actual{
		FarmID: farmID, PlotID: plotID, RubberTypeID: typeID, Date: date, Qty: qty(amount),
	})
	require.NoError(t, err)
}

// =============================================================================
// COMPLETION PERCENTAGE
// =============================================================================

func TestCompletionPct(t *testing.T) {
	// No plan means no percentage, not zero.
	assert.Nil(t, report.CompletionPct(qty("250"), nil))

	// A zero plan cannot be divided by.
	zero := qty("0")
	assert.Nil(t, report.CompletionPct(qty("250"), &zero))

	plan := qty("1000")
	pct := report.CompletionPct(qty("250"), &plan)
	require.NotNil(t, pct)
	assert.Equal(t, 25.0, *pct)

	// Rounded to one decimal place.
	plan3 := qty("3")
	pct = report.CompletionPct(qty("1"), &plan3)
	require.NotNil(t, pct)
	assert.Equal(t, 33.3, *pct)

	// Over-achievement is allowed past 100.
	pct = report.CompletionPct(qty("1500"), &plan)
	require.NotNil(t, pct)
	assert.Equal(t, 150.0, *pct)
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboard_TodayMTDAndCompletion(t *testing.T) {
	// GIVEN: A May plan of 1000 and actuals of 100 on May 1 and 150 on May 15
	// WHEN: Viewing the dashboard for May 15
	// THEN: today=150, mtd=250, completion=25%

	store := newTestStore(t)
	ctx := context.Background()

	farmID, err := store.CreateFarm(ctx, sqlite.Farm{Name: "South Farm"})
	require.NoError(t, err)
	typeID, err := store.CreateRubberType(ctx, sqlite.RubberType{Code: "LATEX", Unit: "kg"})
	require.NoError(t, err)

	_, _, err = store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)

	addActual(t, store, farmID, nil, typeID, "2024-05-01", "100")
	addActual(t, store, farmID, nil, typeID, "2024-05-15", "150")
	addActual(t, store, farmID, nil, typeID, "2024-04-30", "999") // previous month, ignored

	may15 := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)
	data, err := report.Dashboard(ctx, store, may15, &farmID)
	require.NoError(t, err)

	assert.Equal(t, "2024-05-15", data.Date)
	assert.Equal(t, "2024-05", data.Month)
	require.Len(t, data.Rows, 1)

	row := data.Rows[0]
	assert.Equal(t, "LATEX", row.RubberType)
	assert.True(t, row.ActualToday.Equal(qty("150")))
	assert.True(t, row.ActualMTD.Equal(qty("250")))
	require.NotNil(t, row.PlanM)
	assert.True(t, row.PlanM.Equal(qty("1000")))
	require.NotNil(t, row.CompletionPct)
	assert.Equal(t, 25.0, *row.CompletionPct)
}

func TestDashboard_PlanReflectsCurrentVersion(t *testing.T) {
	// After a bump and an edit, the dashboard compares against the edited
	// max-version value, not version 1.

	store := newTestStore(t)
	ctx := context.Background()

	farmID, err := store.CreateFarm(ctx, sqlite.Farm{Name: "South Farm"})
	require.NoError(t, err)
	typeID, err := store.CreateRubberType(ctx, sqlite.RubberType{Code: "LATEX", Unit: "kg"})
	require.NoError(t, err)

	_, _, err = store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)

	_, _, err = store.BumpPlanVersion(ctx, sqlite.PlanScope{
		FarmID: farmID, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05",
	})
	require.NoError(t, err)

	plans, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID})
	require.NoError(t, err)
	for _, p := range plans {
		if p.Version == 2 {
			newQty := qty("2000")
			require.NoError(t, store.UpdatePlan(ctx, p.ID, &newQty, nil))
		}
	}

	may15 := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)
	data, err := report.Dashboard(ctx, store, may15, &farmID)
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	require.NotNil(t, data.Rows[0].PlanM)
	assert.True(t, data.Rows[0].PlanM.Equal(qty("2000")))
}

func TestDashboard_NoFarmFilter_NoPlanColumn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	farmID, err := store.CreateFarm(ctx, sqlite.Farm{Name: "South Farm"})
	require.NoError(t, err)
	typeID, err := store.CreateRubberType(ctx, sqlite.RubberType{Code: "LATEX", Unit: "kg"})
	require.NoError(t, err)

	_, _, err = store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)
	addActual(t, store, farmID, nil, typeID, "2024-05-15", "150")

	may15 := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)
	data, err := report.Dashboard(ctx, store, may15, nil)
	require.NoError(t, err)

	require.Len(t, data.Rows, 1)
	assert.Nil(t, data.Rows[0].PlanM, "plans only compare within one farm")
	assert.Nil(t, data.Rows[0].CompletionPct)
	assert.Empty(t, data.Plots, "plot breakdown needs a farm filter")
}

func TestDashboard_PlotsWithoutDataStillAppear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	farmID, err := store.CreateFarm(ctx, sqlite.Farm{Name: "South Farm"})
	require.NoError(t, err)
	typeID, err := store.CreateRubberType(ctx, sqlite.RubberType{Code: "LATEX", Unit: "kg"})
	require.NoError(t, err)
	plotA, err := store.UpsertPlot(ctx, sqlite.Plot{FarmID: farmID, Code: "A1"})
	require.NoError(t, err)
	_, err = store.UpsertPlot(ctx, sqlite.Plot{FarmID: farmID, Code: "B2"})
	require.NoError(t, err)

	addActual(t, store, farmID, &plotA, typeID, "2024-05-15", "25")

	may15 := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)
	data, err := report.Dashboard(ctx, store, may15, &farmID)
	require.NoError(t, err)

	require.Len(t, data.Plots, 2, "every active plot appears per rubber type")
	assert.Equal(t, "A1", data.Plots[0].PlotCode)
	assert.True(t, data.Plots[0].ActualToday.Equal(qty("25")))
	assert.Equal(t, "B2", data.Plots[1].PlotCode)
	assert.True(t, data.Plots[1].ActualToday.IsZero(), "empty plot shows zeros, not absence")
}

// =============================================================================
// STATS
// =============================================================================

func TestStats_RangeSumsWithDryEquivalent(t *testing.T) {
	// GIVEN: 250 kg of latex over the range and a 0.33 dry factor
	// WHEN: Running stats for May
	// THEN: by_farm shows 250 wet / 82.5 dry

	store := newTestStore(t)
	ctx := context.Background()

	farmID, err := store.CreateFarm(ctx, sqlite.Farm{Name: "South Farm"})
	require.NoError(t, err)
	typeID, err := store.CreateRubberType(ctx, sqlite.RubberType{Code: "LATEX", Unit: "kg"})
	require.NoError(t, err)

	effective, err := time.Parse("2006-01-02", "2024-01-01")
	require.NoError(t, err)
	_, _, err = store.UpsertConversion(ctx, conversion.Row{
		RubberTypeID: typeID, EffectiveFrom: effective, Factor: qty("0.33"),
	})
	require.NoError(t, err)

	addActual(t, store, farmID, nil, typeID, "2024-05-01", "100")
	addActual(t, store, farmID, nil, typeID, "2024-05-15", "150")
	addActual(t, store, farmID, nil, typeID, "2024-06-01", "999") // outside the range

	data, err := report.Stats(ctx, store, "2024-05-01", "2024-05-31", nil)
	require.NoError(t, err)

	require.Len(t, data.ByFarm, 1)
	row := data.ByFarm[0]
	assert.Equal(t, "South Farm", row.FarmName)
	assert.Equal(t, "LATEX", row.RubberType)
	assert.True(t, row.Qty.Equal(qty("250")))
	require.NotNil(t, row.DryQty)
	assert.True(t, row.DryQty.Equal(qty("82.5")))

	assert.Empty(t, data.ByPlot, "plot breakdown needs a farm filter")
}

func TestStats_PlotBreakdownWithFarmFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	farmID, err := store.CreateFarm(ctx, sqlite.Farm{Name: "South Farm"})
	require.NoError(t, err)
	typeID, err := store.CreateRubberType(ctx, sqlite.RubberType{Code: "LATEX", Unit: "kg"})
	require.NoError(t, err)
	plotID, err := store.UpsertPlot(ctx, sqlite.Plot{FarmID: farmID, Code: "A1"})
	require.NoError(t, err)

	addActual(t, store, farmID, &plotID, typeID, "2024-05-01", "100")
	addActual(t, store, farmID, nil, typeID, "2024-05-02", "40")

	data, err := report.Stats(ctx, store, "2024-05-01", "2024-05-31", &farmID)
	require.NoError(t, err)

	require.Len(t, data.ByPlot, 2)

	// Plotless entries group under a nil plot id.
	var plotRow, loose *report.PlotStatsRow
	for i := range data.ByPlot {
		if data.ByPlot[i].PlotID != nil {
			plotRow = &data.ByPlot[i]
		} else {
			loose = &data.ByPlot[i]
		}
	}
	require.NotNil(t, plotRow)
	require.NotNil(t, loose)
	assert.Equal(t, "A1", plotRow.PlotCode)
	assert.True(t, plotRow.Qty.Equal(qty("100")))
	assert.True(t, loose.Qty.Equal(qty("40")))

	// No conversion row exists, so dry stays unknown.
	assert.Nil(t, plotRow.DryQty)
}

func TestStats_EmptyRange(t *testing.T) {
	store := newTestStore(t)

	data, err := report.Stats(context.Background(), store, "2024-05-01", "2024-05-31", nil)
	require.NoError(t, err)
	assert.Empty(t, data.ByFarm)
	assert.Empty(t, data.ByPlot)
}
