/*
Package sqlite provides the SQLite-backed data store for the production
tracker.

PURPOSE:
  All persistence lives here: reference data (farms, plots, rubber types),
  the conversion-factor timeline, the plan versioning engine, daily actual
  entries, report queries, and user accounts. In production the same
  patterns apply to MySQL/PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  farm, plot:   reference data; plots are soft-deactivated via status and
                hard-deleted (with cascade) only through DeletePlot
  rubber_type:  lookup table, rarely mutated
  conversion:   dry-factor timeline per (farm-or-null, rubber type)
  plan:         append-only version lineages; see plans.go
  actual:       one row per (farm, plot-or-null, rubber type, date)
  app_user:     accounts for the auth layer

UPSERT SEMANTICS:
  plot, conversion, plan and actual writes are idempotent upserts keyed on
  their unique indexes: re-saving the same key overwrites the payload
  columns instead of failing or accumulating. Because plot_id/farm_id are
  nullable key columns, uniqueness is enforced through expression indexes
  over COALESCE(col, 0) and the upserts are implemented as
  select-then-update rather than ON CONFLICT targets.

DECIMALS:
  Quantities and factors are stored as decimal strings (TEXT) and scanned
  into shopspring decimals; arithmetic happens in Go, never in SQL.

CONCURRENCY:
  sync.RWMutex guards the connection, WAL mode for readers. Writes are
  last-write-wins per request; the only multi-statement invariants
  (plot cascade delete, bump-version, bulk-copy) run inside explicit
  transactions.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/rubberfarm/production-engine/identity"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrNotFound       = errors.New("record not found")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrDuplicateCode  = errors.New("code already exists")
	ErrDuplicateEntry = errors.New("entry already exists")
)

// Store implements all persistence for the service.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A ":memory:" database exists per connection; keep the pool at one.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS farm (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		area_ha REAL NOT NULL DEFAULT 0,
		province TEXT,
		district TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plot (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		farm_id INTEGER NOT NULL REFERENCES farm(id),
		code TEXT NOT NULL,
		planting_year INTEGER,
		area_ha REAL NOT NULL DEFAULT 0,
		clone TEXT,
		tapping_start_date TEXT,
		status TEXT NOT NULL DEFAULT 'active'
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_plot_farm_code ON plot(farm_id, code);

	CREATE TABLE IF NOT EXISTS rubber_type (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		description TEXT,
		unit TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversion (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		farm_id INTEGER REFERENCES farm(id),
		rubber_type_id INTEGER NOT NULL REFERENCES rubber_type(id),
		effective_from TEXT NOT NULL,
		factor_to_dry_ton TEXT NOT NULL
	);
	-- NULL farm_id means system-wide default; COALESCE so NULL rows still
	-- collide on re-insert of the same effective date.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_conversion_key
		ON conversion(COALESCE(farm_id, 0), rubber_type_id, effective_from);

	CREATE TABLE IF NOT EXISTS plan (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		farm_id INTEGER NOT NULL REFERENCES farm(id),
		plot_id INTEGER REFERENCES plot(id),
		rubber_type_id INTEGER NOT NULL REFERENCES rubber_type(id),
		period_type TEXT NOT NULL,
		period_key TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		planned_qty TEXT NOT NULL DEFAULT '0',
		note TEXT
	);
	-- One row per lineage key + version. NULL plot_id = farm-level plan.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_plan_lineage_version
		ON plan(farm_id, COALESCE(plot_id, 0), rubber_type_id, period_type, period_key, version);
	CREATE INDEX IF NOT EXISTS idx_plan_scope
		ON plan(farm_id, period_type, period_key);

	CREATE TABLE IF NOT EXISTS actual (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		farm_id INTEGER NOT NULL REFERENCES farm(id),
		plot_id INTEGER REFERENCES plot(id),
		rubber_type_id INTEGER NOT NULL REFERENCES rubber_type(id),
		date TEXT NOT NULL,
		qty TEXT NOT NULL DEFAULT '0',
		source TEXT NOT NULL DEFAULT 'manual',
		note TEXT
	);
	-- One recorded quantity per day per dimension combination.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_actual_key
		ON actual(farm_id, COALESCE(plot_id, 0), rubber_type_id, date);
	CREATE INDEX IF NOT EXISTS idx_actual_date ON actual(date);
	CREATE INDEX IF NOT EXISTS idx_actual_farm_date ON actual(farm_id, date);

	CREATE TABLE IF NOT EXISTS app_user (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		hash_pw TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'Planner',
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD TYPES
// =============================================================================

// Farm is a rubber farm.
type Farm struct {
	ID        int64
	Name      string
	AreaHa    float64
	Province  string
	District  string
	Status    string
	CreatedAt time.Time
}

// Plot is a tapping plot inside a farm.
type Plot struct {
	ID               int64
	FarmID           int64
	Code             string
	PlantingYear     *int64
	AreaHa           float64
	Clone            string
	TappingStartDate string
	Status           string
}

// RubberType is a lookup entry for a latex/cup-lump product.
type RubberType struct {
	ID          int64
	Code        string
	Description string
	Unit        string
}

// Actual is one day's recorded output for a dimension combination.
type Actual struct {
	ID           int64
	FarmID       int64
	PlotID       *int64
	RubberTypeID int64
	Date         string
	Qty          decimal.Decimal
	Source       string
	Note         string
}

// UserRecord is an app_user row including the password hash.
type UserRecord struct {
	ID        int64
	Username  string
	HashPW    string
	Role      string
	CreatedAt time.Time
}

// =============================================================================
// FARMS
// =============================================================================

// ListFarms returns all farms ordered by name.
func (s *Store) ListFarms(ctx context.Context) ([]Farm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, area_ha, province, district, status, created_at
		FROM farm ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}
	defer rows.Close()

	var farms []Farm
	for rows.Next() {
		var (
			f                  Farm
			province, district sql.NullString
			createdAt          string
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.AreaHa, &province, &district, &f.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan farm: %w", err)
		}
		f.Province = province.String
		f.District = district.String
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		farms = append(farms, f)
	}
	return farms, rows.Err()
}

// CreateFarm inserts a farm and returns its id.
func (s *Store) CreateFarm(ctx context.Context, f Farm) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO farm (name, area_ha, province, district, status, created_at)
		VALUES (?, ?, ?, ?, 'active', ?)`,
		f.Name, f.AreaHa, nullString(f.Province), nullString(f.District),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create farm: %w", err)
	}
	return res.LastInsertId()
}

// =============================================================================
// PLOTS
// =============================================================================

// ListPlots returns the active plots of a farm ordered by code.
func (s *Store) ListPlots(ctx context.Context, farmID int64) ([]Plot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, farm_id, code, planting_year, area_ha, clone, tapping_start_date, status
		FROM plot
		WHERE farm_id = ? AND status = 'active'
		ORDER BY code`, farmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plots: %w", err)
	}
	defer rows.Close()

	var plots []Plot
	for rows.Next() {
		p, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		plots = append(plots, p)
	}
	return plots, rows.Err()
}

func scanPlot(rows *sql.Rows) (Plot, error) {
	var (
		p               Plot
		plantingYear    sql.NullInt64
		clone, tapStart sql.NullString
	)
	err := rows.Scan(&p.ID, &p.FarmID, &p.Code, &plantingYear, &p.AreaHa, &clone, &tapStart, &p.Status)
	if err != nil {
		return p, fmt.Errorf("failed to scan plot: %w", err)
	}
	if plantingYear.Valid {
		p.PlantingYear = &plantingYear.Int64
	}
	p.Clone = clone.String
	p.TappingStartDate = tapStart.String
	return p, nil
}

// UpsertPlot creates a plot or, when (farm_id, code) already exists,
// overwrites its payload columns and reactivates it.
func (s *Store) UpsertPlot(ctx context.Context, p Plot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM plot WHERE farm_id = ? AND code = ?`, p.FarmID, p.Code,
	).Scan(&id)

	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE plot
			SET planting_year = ?, area_ha = ?, clone = ?, tapping_start_date = ?, status = 'active'
			WHERE id = ?`,
			nullInt64Ptr(p.PlantingYear), p.AreaHa, nullString(p.Clone),
			nullString(p.TappingStartDate), id,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update plot: %w", err)
		}
		return id, nil

	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO plot (farm_id, code, planting_year, area_ha, clone, tapping_start_date, status)
			VALUES (?, ?, ?, ?, ?, ?, 'active')`,
			p.FarmID, p.Code, nullInt64Ptr(p.PlantingYear), p.AreaHa,
			nullString(p.Clone), nullString(p.TappingStartDate),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert plot: %w", err)
		}
		return res.LastInsertId()

	default:
		return 0, fmt.Errorf("failed to look up plot: %w", err)
	}
}

// DeletePlot hard-deletes a plot and every actual and plan row that
// references it, in one transaction.
func (s *Store) DeletePlot(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM actual WHERE plot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete plot actuals: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan WHERE plot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete plot plans: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM plot WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// =============================================================================
// RUBBER TYPES
// =============================================================================

// ListRubberTypes returns all rubber types ordered by id.
func (s *Store) ListRubberTypes(ctx context.Context) ([]RubberType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, description, unit FROM rubber_type ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rubber types: %w", err)
	}
	defer rows.Close()

	var types []RubberType
	for rows.Next() {
		var (
			rt   RubberType
			desc sql.NullString
		)
		if err := rows.Scan(&rt.ID, &rt.Code, &desc, &rt.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan rubber type: %w", err)
		}
		rt.Description = desc.String
		types = append(types, rt)
	}
	return types, rows.Err()
}

// CreateRubberType inserts a rubber type. Returns ErrDuplicateCode when the
// code is already registered.
func (s *Store) CreateRubberType(ctx context.Context, rt RubberType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rubber_type (code, description, unit) VALUES (?, ?, ?)`,
		rt.Code, nullString(rt.Description), rt.Unit,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ErrDuplicateCode
		}
		return 0, fmt.Errorf("failed to create rubber type: %w", err)
	}
	return res.LastInsertId()
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser inserts an account. Returns ErrUsernameTaken on collision.
func (s *Store) CreateUser(ctx context.Context, username, hashPW string, role identity.Role) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO app_user (username, hash_pw, role, created_at) VALUES (?, ?, ?, ?)`,
		username, hashPW, string(role), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

// GetUserByUsername returns the full record including the password hash.
// Returns nil when no such user exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u         UserRecord
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, hash_pw, role, created_at FROM app_user WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.HashPW, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// GetUserByID returns the public identity for a user id, or nil.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u         identity.User
		role      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, role, created_at FROM app_user WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = identity.Role(role)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
