/*
actuals.go - Daily actual-output entries

One row per (farm, plot-or-null, rubber type, date). UpsertActual is the
idempotent write path: re-saving the same key overwrites qty/note, it never
accumulates. Two concurrent writers race last-write-wins; there is no
version token on actuals.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ActualFilter narrows ListActuals. Limit 0 means the default of 200.
type ActualFilter struct {
	FarmID       *int64
	PlotID       *int64
	RubberTypeID *int64
	DateFrom     *string
	DateTo       *string
	Limit        int
}

const defaultActualLimit = 200

// UpsertActual saves one day's entry, overwriting qty/note when the key
// already exists. Returns the row id and whether a new row was created.
func (s *Store) UpsertActual(ctx context.Context, a Actual) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Source == "" {
		a.Source = "manual"
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM actual
		WHERE farm_id = ? AND COALESCE(plot_id, 0) = COALESCE(?, 0)
		  AND rubber_type_id = ? AND date = ?`,
		a.FarmID, nullInt64Ptr(a.PlotID), a.RubberTypeID, a.Date,
	).Scan(&id)

	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx,
			`UPDATE actual SET qty = ?, note = ? WHERE id = ?`,
			a.Qty.String(), nullString(a.Note), id,
		)
		if err != nil {
			return 0, false, fmt.Errorf("failed to update actual: %w", err)
		}
		return id, false, nil

	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO actual (farm_id, plot_id, rubber_type_id, date, qty, source, note)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.FarmID, nullInt64Ptr(a.PlotID), a.RubberTypeID, a.Date,
			a.Qty.String(), a.Source, nullString(a.Note),
		)
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert actual: %w", err)
		}
		id, err := res.LastInsertId()
		return id, true, err

	default:
		return 0, false, fmt.Errorf("failed to look up actual: %w", err)
	}
}

// ListActuals returns entries matching the filter, newest first.
func (s *Store) ListActuals(ctx context.Context, f ActualFilter) ([]Actual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	args := []any{}
	if f.FarmID != nil {
		where = append(where, "farm_id = ?")
		args = append(args, *f.FarmID)
	}
	if f.PlotID != nil {
		where = append(where, "plot_id = ?")
		args = append(args, *f.PlotID)
	}
	if f.RubberTypeID != nil {
		where = append(where, "rubber_type_id = ?")
		args = append(args, *f.RubberTypeID)
	}
	if f.DateFrom != nil {
		where = append(where, "date >= ?")
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		where = append(where, "date <= ?")
		args = append(args, *f.DateTo)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultActualLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, farm_id, plot_id, rubber_type_id, date, qty, source, note
		FROM actual
		WHERE `+joinAnd(where)+`
		ORDER BY date DESC, id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actuals: %w", err)
	}
	defer rows.Close()

	var out []Actual
	for rows.Next() {
		a, err := scanActual(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanActual(rows *sql.Rows) (Actual, error) {
	var (
		a      Actual
		plotID sql.NullInt64
		qty    string
		note   sql.NullString
	)
	err := rows.Scan(&a.ID, &a.FarmID, &plotID, &a.RubberTypeID, &a.Date, &qty, &a.Source, &note)
	if err != nil {
		return a, fmt.Errorf("failed to scan actual: %w", err)
	}
	if plotID.Valid {
		a.PlotID = &plotID.Int64
	}
	a.Qty = parseDecimal(qty)
	a.Note = note.String
	return a, nil
}

// UpdateActual edits qty, note and/or date of one entry by id. Moving the
// date onto a day that already has an entry for the same dimensions returns
// ErrDuplicateEntry.
func (s *Store) UpdateActual(ctx context.Context, id int64, qty *decimal.Decimal, note *string, date *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := []string{}
	args := []any{}
	if qty != nil {
		sets = append(sets, "qty = ?")
		args = append(args, qty.String())
	}
	if note != nil {
		sets = append(sets, "note = ?")
		args = append(args, nullString(*note))
	}
	if date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *date)
	}
	if len(sets) == 0 {
		return errors.New("no updates")
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE actual SET `+joinComma(sets)+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to update actual: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteActual removes one entry by id.
func (s *Store) DeleteActual(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM actual WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete actual: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
