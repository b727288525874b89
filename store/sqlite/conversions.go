/*
conversions.go - Dry-conversion factor timeline persistence

Storage for conversion.Row timelines plus the ResolveFactor convenience
that loads a rubber type's rows and delegates to the pure resolver.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rubberfarm/production-engine/conversion"
)

// UpsertConversion saves a factor row, overwriting the factor when the
// (farm-or-null, rubber type, effective_from) key already exists.
// Returns the row id and whether a new row was created.
func (s *Store) UpsertConversion(ctx context.Context, c conversion.Row) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	effective := c.EffectiveFrom.Format("2006-01-02")

	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM conversion
		WHERE COALESCE(farm_id, 0) = COALESCE(?, 0)
		  AND rubber_type_id = ? AND effective_from = ?`,
		nullInt64Ptr(c.FarmID), c.RubberTypeID, effective,
	).Scan(&id)

	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx,
			`UPDATE conversion SET factor_to_dry_ton = ? WHERE id = ?`,
			c.Factor.String(), id,
		)
		if err != nil {
			return 0, false, fmt.Errorf("failed to update conversion: %w", err)
		}
		return id, false, nil

	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO conversion (farm_id, rubber_type_id, effective_from, factor_to_dry_ton)
			VALUES (?, ?, ?, ?)`,
			nullInt64Ptr(c.FarmID), c.RubberTypeID, effective, c.Factor.String(),
		)
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert conversion: %w", err)
		}
		id, err := res.LastInsertId()
		return id, true, err

	default:
		return 0, false, fmt.Errorf("failed to look up conversion: %w", err)
	}
}

// ListConversions returns factor rows. With a farm id it returns that
// farm's rows plus the system-wide defaults; with nil it returns all rows.
func (s *Store) ListConversions(ctx context.Context, farmID *int64) ([]conversion.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, farm_id, rubber_type_id, effective_from, factor_to_dry_ton
		FROM conversion`
	args := []any{}
	if farmID != nil {
		query += ` WHERE farm_id = ? OR farm_id IS NULL`
		args = append(args, *farmID)
	}
	query += ` ORDER BY rubber_type_id, effective_from DESC, id DESC`

	return s.queryConversions(ctx, query, args...)
}

// ConversionsByType returns every factor row for one rubber type, the input
// the resolver partitions itself.
func (s *Store) ConversionsByType(ctx context.Context, rubberTypeID int64) ([]conversion.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryConversions(ctx, `
		SELECT id, farm_id, rubber_type_id, effective_from, factor_to_dry_ton
		FROM conversion
		WHERE rubber_type_id = ?
		ORDER BY effective_from DESC, id DESC`, rubberTypeID)
}

// ResolveFactor loads the rubber type's timeline and resolves the factor
// applicable for farmID (nil = system-wide) at asOf.
func (s *Store) ResolveFactor(ctx context.Context, rubberTypeID int64, farmID *int64, asOf time.Time) (conversion.Result, bool, error) {
	rows, err := s.ConversionsByType(ctx, rubberTypeID)
	if err != nil {
		return conversion.Result{}, false, err
	}
	res, ok := conversion.Resolve(rows, farmID, asOf)
	return res, ok, nil
}

func (s *Store) queryConversions(ctx context.Context, query string, args ...any) ([]conversion.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var out []conversion.Row
	for rows.Next() {
		var (
			r         conversion.Row
			farmID    sql.NullInt64
			effective string
			factor    string
		)
		if err := rows.Scan(&r.ID, &farmID, &r.RubberTypeID, &effective, &factor); err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		if farmID.Valid {
			r.FarmID = &farmID.Int64
		}
		r.EffectiveFrom, _ = time.Parse("2006-01-02", effective)
		r.Factor = parseDecimal(factor)
		out = append(out, r)
	}
	return out, rows.Err()
}
