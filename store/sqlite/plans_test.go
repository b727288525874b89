package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubberfarm/production-engine/planning"
	"github.com/rubberfarm/production-engine/store/sqlite"
)

func monthScope(farmID int64, key string) sqlite.PlanScope {
	return sqlite.PlanScope{FarmID: farmID, PeriodType: planning.PeriodMonth, PeriodKey: key}
}

// =============================================================================
// UPSERT
// =============================================================================

func TestUpsertPlan_CreatesVersionOne(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	typeID := seedRubberType(t, store, "LATEX")

	id, created, err := store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Positive(t, id)

	plans, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, int64(1), plans[0].Version)
	assert.True(t, plans[0].PlannedQty.Equal(qty("1000")))
	assert.Equal(t, "South Farm", plans[0].FarmName)
	assert.Equal(t, "LATEX", plans[0].RubberType)
}

func TestUpsertPlan_ResubmitOverwritesNotDuplicates(t *testing.T) {
	// GIVEN: A plan for (farm, LATEX, 2024-05)
	// WHEN: The same form is submitted again with a new quantity
	// THEN: The existing row is overwritten, the lineage stays at one row

	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	typeID := seedRubberType(t, store, "LATEX")

	plan := planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	}
	first, created, err := store.UpsertPlan(ctx, plan)
	require.NoError(t, err)
	require.True(t, created)

	plan.PlannedQty = qty("1200")
	second, created, err := store.UpsertPlan(ctx, plan)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	plans, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.True(t, plans[0].PlannedQty.Equal(qty("1200")))
}

func TestUpsertPlan_FarmAndPlotLevelCoexist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	typeID := seedRubberType(t, store, "LATEX")
	plotID := seedPlot(t, store, farmID, "A1")

	_, _, err := store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)
	_, _, err = store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, PlotID: &plotID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("300"),
	})
	require.NoError(t, err)

	plans, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID})
	require.NoError(t, err)
	assert.Len(t, plans, 2, "plot-level and farm-level plans are separate lineages")
}

// =============================================================================
// IN-PLACE EDIT AND DELETE
// =============================================================================

func TestUpdatePlan_InPlaceKeepsVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	typeID := seedRubberType(t, store, "LATEX")

	id, _, err := store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)

	newQty := qty("1500")
	note := "revised after rains"
	require.NoError(t, store.UpdatePlan(ctx, id, &newQty, &note))

	plans, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, int64(1), plans[0].Version, "in-place edit must not bump the version")
	assert.True(t, plans[0].PlannedQty.Equal(newQty))
	assert.Equal(t, note, plans[0].Note)
}

func TestUpdatePlan_MissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	q := qty("1")
	err := store.UpdatePlan(context.Background(), 9999, &q, nil)
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestDeletePlan_RemovesOnlyThatRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	typeID := seedRubberType(t, store, "LATEX")

	id, _, err := store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)

	_, _, err = store.BumpPlanVersion(ctx, monthScope(farmID, "2024-05"))
	require.NoError(t, err)

	require.NoError(t, store.DeletePlan(ctx, id))

	plans, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID})
	require.NoError(t, err)
	require.Len(t, plans, 1, "other versions of the lineage survive")
	assert.Equal(t, int64(2), plans[0].Version)
}

// =============================================================================
// VERSION BUMPS
// =============================================================================

func TestBumpPlanVersion_CopiesEveryCurrentRow(t *testing.T) {
	// GIVEN: Three current plans in 2024-05 (two types, one plot-level)
	// WHEN: Bumping the farm+period scope
	// THEN: Version 2 holds exact copies and becomes the current version

	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	latexID := seedRubberType(t, store, "LATEX")
	cupID := seedRubberType(t, store, "CUPLUMP")
	plotID := seedPlot(t, store, farmID, "A1")

	for _, p := range []planning.Plan{
		{FarmID: farmID, RubberTypeID: latexID, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"), Note: "base"},
		{FarmID: farmID, RubberTypeID: cupID, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("400")},
		{FarmID: farmID, PlotID: &plotID, RubberTypeID: latexID, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("250")},
	} {
		_, _, err := store.UpsertPlan(ctx, p)
		require.NoError(t, err)
	}

	version, copied, err := store.BumpPlanVersion(ctx, monthScope(farmID, "2024-05"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, 3, copied)

	history, err := store.PlanHistory(ctx, &farmID, planning.PeriodMonth, "2024-05")
	require.NoError(t, err)
	assert.Len(t, history, 6)

	// The bump preserved quantities and notes per row.
	var v2Latex []sqlite.PlanHistoryRow
	for _, h := range history {
		if h.Version == 2 && h.RubberType == "LATEX" {
			v2Latex = append(v2Latex, h)
		}
	}
	require.Len(t, v2Latex, 2)
	for _, h := range v2Latex {
		if h.PlotID == nil {
			assert.True(t, h.PlannedQty.Equal(qty("1000")))
			assert.Equal(t, "base", h.Note)
		} else {
			assert.True(t, h.PlannedQty.Equal(qty("250")))
		}
	}
}

func TestBumpPlanVersion_EmptyScope(t *testing.T) {
	store := newTestStore(t)
	farmID := seedFarm(t, store, "South Farm")

	version, copied, err := store.BumpPlanVersion(context.Background(), monthScope(farmID, "2024-05"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Zero(t, copied)
}

func TestBumpPlanVersion_NarrowedToOneRubberType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	latexID := seedRubberType(t, store, "LATEX")
	cupID := seedRubberType(t, store, "CUPLUMP")

	for _, typeID := range []int64{latexID, cupID} {
		_, _, err := store.UpsertPlan(ctx, planning.Plan{
			FarmID: farmID, RubberTypeID: typeID,
			PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("100"),
		})
		require.NoError(t, err)
	}

	scope := monthScope(farmID, "2024-05")
	scope.RubberTypeID = &latexID
	version, copied, err := store.BumpPlanVersion(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, 1, copied, "only the scoped rubber type is bumped")
}

func TestPlanHistory_OrderedByTypeThenVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	latexID := seedRubberType(t, store, "LATEX")
	cupID := seedRubberType(t, store, "CUPLUMP")

	for _, typeID := range []int64{latexID, cupID} {
		_, _, err := store.UpsertPlan(ctx, planning.Plan{
			FarmID: farmID, RubberTypeID: typeID,
			PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("100"),
		})
		require.NoError(t, err)
	}
	_, _, err := store.BumpPlanVersion(ctx, monthScope(farmID, "2024-05"))
	require.NoError(t, err)

	history, err := store.PlanHistory(ctx, &farmID, planning.PeriodMonth, "2024-05")
	require.NoError(t, err)
	require.Len(t, history, 4)

	assert.Equal(t, "CUPLUMP", history[0].RubberType)
	assert.Equal(t, int64(1), history[0].Version)
	assert.Equal(t, "CUPLUMP", history[1].RubberType)
	assert.Equal(t, int64(2), history[1].Version)
	assert.Equal(t, "LATEX", history[2].RubberType)
	assert.Equal(t, "LATEX", history[3].RubberType)
}

// =============================================================================
// BULK COPY
// =============================================================================

func TestCopyPlans_AprilIntoMay(t *testing.T) {
	// GIVEN: April plans at version 2 (after a bump and an edit)
	// WHEN: Copying April into May
	// THEN: May receives the current (v2) April values at version 1

	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	typeID := seedRubberType(t, store, "LATEX")

	_, _, err := store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-04", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)
	_, _, err = store.BumpPlanVersion(ctx, monthScope(farmID, "2024-04"))
	require.NoError(t, err)

	// Edit the new current version so src and history differ.
	plans, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID})
	require.NoError(t, err)
	for _, p := range plans {
		if p.Version == 2 {
			newQty := qty("1100")
			require.NoError(t, store.UpdatePlan(ctx, p.ID, &newQty, nil))
		}
	}

	copied, err := store.CopyPlans(ctx, monthScope(farmID, "2024-04"), sqlite.CopyTarget{
		FarmID: farmID, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, copied)

	key := "2024-05"
	may, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID, PeriodKey: &key})
	require.NoError(t, err)
	require.Len(t, may, 1)
	assert.Equal(t, int64(1), may[0].Version, "a copy starts the destination lineage at version 1")
	assert.True(t, may[0].PlannedQty.Equal(qty("1100")), "the copy takes the current version's value")
}

func TestCopyPlans_RerunOverwritesDestination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	farmID := seedFarm(t, store, "South Farm")
	typeID := seedRubberType(t, store, "LATEX")

	_, _, err := store.UpsertPlan(ctx, planning.Plan{
		FarmID: farmID, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-04", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)

	dst := sqlite.CopyTarget{FarmID: farmID, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05"}
	_, err = store.CopyPlans(ctx, monthScope(farmID, "2024-04"), dst)
	require.NoError(t, err)
	_, err = store.CopyPlans(ctx, monthScope(farmID, "2024-04"), dst)
	require.NoError(t, err)

	key := "2024-05"
	may, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &farmID, PeriodKey: &key})
	require.NoError(t, err)
	assert.Len(t, may, 1, "re-running the copy must not duplicate rows")
}

func TestCopyPlans_AcrossFarms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	srcFarm := seedFarm(t, store, "South Farm")
	dstFarm := seedFarm(t, store, "North Farm")
	typeID := seedRubberType(t, store, "LATEX")

	_, _, err := store.UpsertPlan(ctx, planning.Plan{
		FarmID: srcFarm, RubberTypeID: typeID,
		PeriodType: planning.PeriodMonth, PeriodKey: "2024-05", PlannedQty: qty("1000"),
	})
	require.NoError(t, err)

	copied, err := store.CopyPlans(ctx, monthScope(srcFarm, "2024-05"), sqlite.CopyTarget{
		FarmID: dstFarm, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, copied)

	dst, err := store.ListPlans(ctx, sqlite.PlanFilter{FarmID: &dstFarm})
	require.NoError(t, err)
	require.Len(t, dst, 1)
	assert.Equal(t, dstFarm, dst[0].FarmID)
	assert.True(t, dst[0].PlannedQty.Equal(qty("1000")))
}

func TestCopyPlans_EmptySource(t *testing.T) {
	store := newTestStore(t)
	farmID := seedFarm(t, store, "South Farm")

	copied, err := store.CopyPlans(context.Background(), monthScope(farmID, "2024-04"), sqlite.CopyTarget{
		FarmID: farmID, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05",
	})
	require.NoError(t, err)
	assert.Zero(t, copied)
}
