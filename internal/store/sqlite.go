package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/stacklok/asteroid-radar/database"
	"github.com/stacklok/asteroid-radar/internal/asteroid"
)

const memoryPath = ":memory:"

const selectColumns = `SELECT id, codename, close_approach_date, absolute_magnitude,
	estimated_diameter, relative_velocity, distance_from_earth, is_potentially_hazardous
	FROM asteroids`

const upsertStatement = `INSERT INTO asteroids (
		id, codename, close_approach_date, absolute_magnitude,
		estimated_diameter, relative_velocity, distance_from_earth, is_potentially_hazardous,
		updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	ON CONFLICT(id) DO UPDATE SET
		codename = excluded.codename,
		close_approach_date = excluded.close_approach_date,
		absolute_magnitude = excluded.absolute_magnitude,
		estimated_diameter = excluded.estimated_diameter,
		relative_velocity = excluded.relative_velocity,
		distance_from_earth = excluded.distance_from_earth,
		is_potentially_hazardous = excluded.is_potentially_hazardous,
		updated_at = excluded.updated_at`

// SQLiteStore is a RecordStore backed by a SQLite database file
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it
// to the latest schema. The path ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store path is required")
	}

	dsn := path
	if path != memoryPath {
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != memoryPath {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if err := database.MigrateUp(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	slog.Debug("Opened SQLite record store", "path", path)
	return &SQLiteStore{db: db}, nil
}

// UpsertAll writes rows in a single transaction
func (s *SQLiteStore) UpsertAll(ctx context.Context, rows []asteroid.Asteroid) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("upsert", fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, upsertStatement)
	if err != nil {
		return storeError("upsert", fmt.Errorf("prepare statement: %w", err))
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.Codename,
			r.CloseApproachDate.String(),
			r.AbsoluteMagnitude,
			r.EstimatedDiameter,
			r.RelativeVelocity,
			r.DistanceFromEarth,
			r.IsPotentiallyHazardous,
		)
		if err != nil {
			return storeError("upsert", fmt.Errorf("asteroid %d: %w", r.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("upsert", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Query returns the matching rows ordered by close-approach date, then id
func (s *SQLiteStore) Query(ctx context.Context, pred asteroid.Predicate) ([]asteroid.Asteroid, error) {
	where, args := whereClause(pred)
	rows, err := s.db.QueryContext(ctx, selectColumns+where+" ORDER BY close_approach_date ASC, id ASC", args...)
	if err != nil {
		return nil, storeError("query", err)
	}
	defer rows.Close()

	var out []asteroid.Asteroid
	for rows.Next() {
		var (
			a    asteroid.Asteroid
			date string
		)
		if err := rows.Scan(
			&a.ID,
			&a.Codename,
			&date,
			&a.AbsoluteMagnitude,
			&a.EstimatedDiameter,
			&a.RelativeVelocity,
			&a.DistanceFromEarth,
			&a.IsPotentiallyHazardous,
		); err != nil {
			return nil, storeError("query", err)
		}
		if a.CloseApproachDate, err = asteroid.ParseDate(date); err != nil {
			return nil, storeError("query", fmt.Errorf("asteroid %d: %w", a.ID, err))
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("query", err)
	}
	return out, nil
}

// DeleteWhere removes the matching rows
func (s *SQLiteStore) DeleteWhere(ctx context.Context, pred asteroid.Predicate) (int, error) {
	where, args := whereClause(pred)
	res, err := s.db.ExecContext(ctx, "DELETE FROM asteroids"+where, args...)
	if err != nil {
		return 0, storeError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("delete", err)
	}
	return int(n), nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// whereClause translates a predicate into SQL.
// Dates are stored as YYYY-MM-DD text, so string order is date order.
func whereClause(pred asteroid.Predicate) (string, []any) {
	switch pred.Op {
	case asteroid.OpOn:
		return " WHERE close_approach_date = ?", []any{pred.Date.String()}
	case asteroid.OpOnOrAfter:
		return " WHERE close_approach_date >= ?", []any{pred.Date.String()}
	case asteroid.OpBefore:
		return " WHERE close_approach_date < ?", []any{pred.Date.String()}
	default:
		return "", nil
	}
}
