/*
plans.go - Plan versioning engine

PURPOSE:
  Maintains append-only version lineages per (farm, plot-or-null, rubber
  type, period type, period key). The row with the highest version in a
  lineage is the current plan; superseded versions are immutable history.

OPERATIONS:
  UpsertPlan        create version 1, or overwrite qty/note in place when
                    the exact key (including version) already exists.
                    Upsert-as-create is deliberate: the unique index doubles
                    as an idempotency key for form re-submission.
  UpdatePlan        in-place edit of one row by id. Does NOT bump the
                    version; callers wanting an audit trail bump first.
  DeletePlan        hard delete of one row, no cascade to other versions.
  PlanHistory       every version in a scope, rubber type then version asc.
  BumpPlanVersion   copy all max-version rows of a scope to max+1, in one
                    transaction.
  CopyPlans         copy max-version rows of a source scope into another
                    farm/period (default version 1) with destination upsert
                    semantics, in one transaction.

CURRENT VERSION:
  currentVersionCond is the single MAX(version) predicate shared by every
  reader that needs "the current plan" (history callers get all versions;
  report queries in reports.go reuse the predicate). Keeping it in one
  place stops MAX(version) logic drifting apart across queries.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rubberfarm/production-engine/planning"
)

// currentVersionCond matches plan rows at the max version of their lineage.
// Alias the outer plan table as p.
const currentVersionCond = `p.version = (
	SELECT MAX(p2.version) FROM plan p2
	WHERE p2.farm_id = p.farm_id
	  AND COALESCE(p2.plot_id, 0) = COALESCE(p.plot_id, 0)
	  AND p2.rubber_type_id = p.rubber_type_id
	  AND p2.period_type = p.period_type
	  AND p2.period_key = p.period_key
)`

// PlanFilter narrows ListPlans.
type PlanFilter struct {
	FarmID     *int64
	PeriodType *planning.PeriodType
	PeriodKey  *string
}

// PlanScope identifies the rows a bump or copy operates on. RubberTypeID
// and PlotID narrow the scope; left nil the whole farm+period lineage set
// is affected.
type PlanScope struct {
	FarmID       int64
	PeriodType   planning.PeriodType
	PeriodKey    string
	RubberTypeID *int64
	PlotID       *int64
}

// PlanListRow is a plan joined with display columns for the API.
type PlanListRow struct {
	planning.Plan
	FarmName   string
	RubberType string
}

// PlanHistoryRow is one audit-trail entry.
type PlanHistoryRow struct {
	RubberType string
	PlotID     *int64
	Version    int64
	PlannedQty decimal.Decimal
	Note       string
}

// ListPlans returns plan rows matching the filter, joined with farm and
// rubber-type names, ordered by farm, plot, rubber type, version.
func (s *Store) ListPlans(ctx context.Context, f PlanFilter) ([]PlanListRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	args := []any{}
	if f.FarmID != nil {
		where = append(where, "p.farm_id = ?")
		args = append(args, *f.FarmID)
	}
	if f.PeriodType != nil {
		where = append(where, "p.period_type = ?")
		args = append(args, string(*f.PeriodType))
	}
	if f.PeriodKey != nil {
		where = append(where, "p.period_key = ?")
		args = append(args, *f.PeriodKey)
	}

	query := `
		SELECT p.id, p.farm_id, p.plot_id, p.rubber_type_id,
		       p.period_type, p.period_key, p.version, p.planned_qty, p.note,
		       f.name, rt.code
		FROM plan p
		JOIN farm f ON p.farm_id = f.id
		JOIN rubber_type rt ON p.rubber_type_id = rt.id
		WHERE ` + joinAnd(where) + `
		ORDER BY f.id, COALESCE(p.plot_id, 0), rt.code, p.version`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var out []PlanListRow
	for rows.Next() {
		var (
			r      PlanListRow
			plotID sql.NullInt64
			qty    string
			note   sql.NullString
			ptype  string
		)
		if err := rows.Scan(&r.ID, &r.FarmID, &plotID, &r.RubberTypeID,
			&ptype, &r.PeriodKey, &r.Version, &qty, &note,
			&r.FarmName, &r.RubberType); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		if plotID.Valid {
			r.PlotID = &plotID.Int64
		}
		r.PeriodType = planning.PeriodType(ptype)
		r.PlannedQty = parseDecimal(qty)
		r.Note = note.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertPlan saves a plan at version 1 of its lineage: a fresh lineage gets
// an insert, an existing (key, version) row gets qty/note overwritten.
// Returns the row id and whether a new row was created.
func (s *Store) UpsertPlan(ctx context.Context, p planning.Plan) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Version == 0 {
		p.Version = 1
	}
	return upsertPlan(ctx, s.db, p)
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsertPlan(ctx context.Context, db execQuerier, p planning.Plan) (int64, bool, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		SELECT id FROM plan
		WHERE farm_id = ? AND COALESCE(plot_id, 0) = COALESCE(?, 0)
		  AND rubber_type_id = ? AND period_type = ? AND period_key = ? AND version = ?`,
		p.FarmID, nullInt64Ptr(p.PlotID), p.RubberTypeID,
		string(p.PeriodType), p.PeriodKey, p.Version,
	).Scan(&id)

	switch {
	case err == nil:
		_, err = db.ExecContext(ctx,
			`UPDATE plan SET planned_qty = ?, note = ? WHERE id = ?`,
			p.PlannedQty.String(), nullString(p.Note), id,
		)
		if err != nil {
			return 0, false, fmt.Errorf("failed to update plan: %w", err)
		}
		return id, false, nil

	case errors.Is(err, sql.ErrNoRows):
		res, err := db.ExecContext(ctx, `
			INSERT INTO plan (farm_id, plot_id, rubber_type_id, period_type, period_key, version, planned_qty, note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.FarmID, nullInt64Ptr(p.PlotID), p.RubberTypeID,
			string(p.PeriodType), p.PeriodKey, p.Version,
			p.PlannedQty.String(), nullString(p.Note),
		)
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert plan: %w", err)
		}
		id, err := res.LastInsertId()
		return id, true, err

	default:
		return 0, false, fmt.Errorf("failed to look up plan: %w", err)
	}
}

// UpdatePlan edits planned_qty and/or note of one row in place. The version
// is untouched; this rewrites current-draft history by design.
func (s *Store) UpdatePlan(ctx context.Context, id int64, qty *decimal.Decimal, note *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := []string{}
	args := []any{}
	if qty != nil {
		sets = append(sets, "planned_qty = ?")
		args = append(args, qty.String())
	}
	if note != nil {
		sets = append(sets, "note = ?")
		args = append(args, nullString(*note))
	}
	if len(sets) == 0 {
		return errors.New("no updates")
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE plan SET `+joinComma(sets)+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlan hard-deletes exactly one row by id.
func (s *Store) DeletePlan(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM plan WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PlanHistory returns every version for a period scope ordered by rubber
// type code then version ascending. farmID nil spans all farms.
func (s *Store) PlanHistory(ctx context.Context, farmID *int64, periodType planning.PeriodType, periodKey string) ([]PlanHistoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"p.period_type = ?", "p.period_key = ?"}
	args := []any{string(periodType), periodKey}
	if farmID != nil {
		where = append(where, "p.farm_id = ?")
		args = append(args, *farmID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rt.code, p.plot_id, p.version, p.planned_qty, p.note
		FROM plan p
		JOIN rubber_type rt ON p.rubber_type_id = rt.id
		WHERE `+joinAnd(where)+`
		ORDER BY rt.code, p.version`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan history: %w", err)
	}
	defer rows.Close()

	var out []PlanHistoryRow
	for rows.Next() {
		var (
			r      PlanHistoryRow
			plotID sql.NullInt64
			qty    string
			note   sql.NullString
		)
		if err := rows.Scan(&r.RubberType, &plotID, &r.Version, &qty, &note); err != nil {
			return nil, fmt.Errorf("failed to scan plan history: %w", err)
		}
		if plotID.Valid {
			r.PlotID = &plotID.Int64
		}
		r.PlannedQty = parseDecimal(qty)
		r.Note = note.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// BumpPlanVersion copies every row at the scope's max version into new rows
// at max+1, preserving plot, rubber type, qty and note per row. The whole
// copy is one transaction: either every row of the new version exists or
// none does. Returns the new version number and the number of rows copied;
// an empty scope bumps nothing and reports version 1, count 0.
func (s *Store) BumpPlanVersion(ctx context.Context, scope PlanScope) (int64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	maxVersion, err := scopeMaxVersion(ctx, tx, scope)
	if err != nil {
		return 0, 0, err
	}
	next := maxVersion + 1
	if maxVersion == 0 {
		return next, 0, tx.Commit()
	}

	plans, err := scopePlansAtVersion(ctx, tx, scope, maxVersion)
	if err != nil {
		return 0, 0, err
	}

	for _, p := range plans {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plan (farm_id, plot_id, rubber_type_id, period_type, period_key, version, planned_qty, note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.FarmID, nullInt64Ptr(p.PlotID), p.RubberTypeID,
			string(p.PeriodType), p.PeriodKey, next,
			p.PlannedQty.String(), nullString(p.Note),
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to copy plan to version %d: %w", next, err)
		}
	}

	return next, len(plans), tx.Commit()
}

// CopyTarget is the destination of a CopyPlans call.
type CopyTarget struct {
	FarmID     int64
	PeriodType planning.PeriodType
	PeriodKey  string
	Version    int64 // 0 means 1
}

// CopyPlans copies the max-version rows of the source scope into the
// destination farm/period at dst.Version, upserting on the destination key
// so a re-run overwrites rather than fails. One transaction; returns the
// number of rows copied.
func (s *Store) CopyPlans(ctx context.Context, src PlanScope, dst CopyTarget) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dst.Version == 0 {
		dst.Version = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	maxVersion, err := scopeMaxVersion(ctx, tx, src)
	if err != nil {
		return 0, err
	}
	if maxVersion == 0 {
		return 0, tx.Commit()
	}

	plans, err := scopePlansAtVersion(ctx, tx, src, maxVersion)
	if err != nil {
		return 0, err
	}

	for _, p := range plans {
		p.FarmID = dst.FarmID
		p.PeriodType = dst.PeriodType
		p.PeriodKey = dst.PeriodKey
		p.Version = dst.Version
		if _, _, err := upsertPlan(ctx, tx, p); err != nil {
			return 0, err
		}
	}

	return len(plans), tx.Commit()
}

// =============================================================================
// SCOPE HELPERS
// =============================================================================

func scopeWhere(scope PlanScope) (string, []any) {
	where := []string{"farm_id = ?", "period_type = ?", "period_key = ?"}
	args := []any{scope.FarmID, string(scope.PeriodType), scope.PeriodKey}
	if scope.RubberTypeID != nil {
		where = append(where, "rubber_type_id = ?")
		args = append(args, *scope.RubberTypeID)
	}
	if scope.PlotID != nil {
		where = append(where, "COALESCE(plot_id, 0) = ?")
		args = append(args, *scope.PlotID)
	}
	return joinAnd(where), args
}

func scopeMaxVersion(ctx context.Context, tx *sql.Tx, scope PlanScope) (int64, error) {
	cond, args := scopeWhere(scope)
	var max int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM plan WHERE `+cond, args...,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to find max version: %w", err)
	}
	return max, nil
}

func scopePlansAtVersion(ctx context.Context, tx *sql.Tx, scope PlanScope, version int64) ([]planning.Plan, error) {
	cond, args := scopeWhere(scope)
	args = append(args, version)

	rows, err := tx.QueryContext(ctx, `
		SELECT id, farm_id, plot_id, rubber_type_id, period_type, period_key, version, planned_qty, note
		FROM plan
		WHERE `+cond+` AND version = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load scope plans: %w", err)
	}
	defer rows.Close()

	var out []planning.Plan
	for rows.Next() {
		var (
			p      planning.Plan
			plotID sql.NullInt64
			ptype  string
			qty    string
			note   sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.FarmID, &plotID, &p.RubberTypeID,
			&ptype, &p.PeriodKey, &p.Version, &qty, &note); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		if plotID.Valid {
			p.PlotID = &plotID.Int64
		}
		p.PeriodType = planning.PeriodType(ptype)
		p.PlannedQty = parseDecimal(qty)
		p.Note = note.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func joinAnd(conds []string) string {
	out := conds[0]
	for _, c := range conds[1:] {
		out += " AND " + c
	}
	return out
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
