/*
reports.go - Read queries backing the report package

Implements report.Store. These are the only readers of "current plan"
besides history, and they share currentVersionCond from plans.go.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rubberfarm/production-engine/conversion"
	"github.com/rubberfarm/production-engine/report"
)

// Farms returns id/name references for the dashboard farm picker.
func (s *Store) Farms(ctx context.Context) ([]report.FarmRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM farm ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list farm refs: %w", err)
	}
	defer rows.Close()

	refs := []report.FarmRef{}
	for rows.Next() {
		var f report.FarmRef
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan farm ref: %w", err)
		}
		refs = append(refs, f)
	}
	return refs, rows.Err()
}

// RubberTypes returns id/code references ordered by code.
func (s *Store) RubberTypes(ctx context.Context) ([]report.TypeRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, code FROM rubber_type ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list type refs: %w", err)
	}
	defer rows.Close()

	refs := []report.TypeRef{}
	for rows.Next() {
		var t report.TypeRef
		if err := rows.Scan(&t.ID, &t.Code); err != nil {
			return nil, fmt.Errorf("failed to scan type ref: %w", err)
		}
		refs = append(refs, t)
	}
	return refs, rows.Err()
}

// ActivePlots returns id/code references for a farm's active plots.
func (s *Store) ActivePlots(ctx context.Context, farmID int64) ([]report.PlotRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code FROM plot WHERE farm_id = ? AND status = 'active' ORDER BY code`,
		farmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plot refs: %w", err)
	}
	defer rows.Close()

	refs := []report.PlotRef{}
	for rows.Next() {
		var p report.PlotRef
		if err := rows.Scan(&p.ID, &p.Code); err != nil {
			return nil, fmt.Errorf("failed to scan plot ref: %w", err)
		}
		refs = append(refs, p)
	}
	return refs, rows.Err()
}

// MonthActuals returns every actual entry in a calendar month
// (month = "YYYY-MM"), optionally scoped to a farm.
func (s *Store) MonthActuals(ctx context.Context, month string, farmID *int64) ([]report.ActualEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT farm_id, plot_id, rubber_type_id, date, qty
		FROM actual
		WHERE substr(date, 1, 7) = ?`
	args := []any{month}
	if farmID != nil {
		query += ` AND farm_id = ?`
		args = append(args, *farmID)
	}
	return s.queryActualEntries(ctx, query, args...)
}

// RangeActuals returns entries with dateFrom <= date <= dateTo, optionally
// scoped to a farm.
func (s *Store) RangeActuals(ctx context.Context, dateFrom, dateTo string, farmID *int64) ([]report.ActualEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT farm_id, plot_id, rubber_type_id, date, qty
		FROM actual
		WHERE date >= ? AND date <= ?`
	args := []any{dateFrom, dateTo}
	if farmID != nil {
		query += ` AND farm_id = ?`
		args = append(args, *farmID)
	}
	return s.queryActualEntries(ctx, query, args...)
}

func (s *Store) queryActualEntries(ctx context.Context, query string, args ...any) ([]report.ActualEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actual entries: %w", err)
	}
	defer rows.Close()

	entries := []report.ActualEntry{}
	for rows.Next() {
		var (
			e      report.ActualEntry
			plotID sql.NullInt64
			qty    string
		)
		if err := rows.Scan(&e.FarmID, &plotID, &e.RubberTypeID, &e.Date, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan actual entry: %w", err)
		}
		if plotID.Valid {
			e.PlotID = &plotID.Int64
		}
		e.Qty = parseDecimal(qty)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CurrentMonthPlans returns the max-version value of every MONTH plan
// lineage of a farm for the given month, farm-level and plot-level alike.
func (s *Store) CurrentMonthPlans(ctx context.Context, farmID int64, month string) ([]report.PlanValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.plot_id, p.rubber_type_id, p.planned_qty
		FROM plan p
		WHERE p.farm_id = ? AND p.period_type = 'MONTH' AND p.period_key = ?
		  AND `+currentVersionCond,
		farmID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query current plans: %w", err)
	}
	defer rows.Close()

	values := []report.PlanValue{}
	for rows.Next() {
		var (
			v      report.PlanValue
			plotID sql.NullInt64
			qty    string
		)
		if err := rows.Scan(&plotID, &v.RubberTypeID, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan plan value: %w", err)
		}
		if plotID.Valid {
			v.PlotID = &plotID.Int64
		}
		v.Qty = parseDecimal(qty)
		values = append(values, v)
	}
	return values, rows.Err()
}

// Conversions adapts ListConversions to the report.Store interface.
func (s *Store) Conversions(ctx context.Context, farmID *int64) ([]conversion.Row, error) {
	return s.ListConversions(ctx, farmID)
}
