// Package localstore persists the canonical local collection of budgeting
// plans in an embedded SQLite database. It is the local source of truth:
// the sync core only ever reads plans from here indirectly (via the
// caller) and the caller commits resolved results back.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/moneto/moneto-go/internal/plan"
	msync "github.com/moneto/moneto-go/internal/sync"
)

// ErrPlanNotFound is returned by Get for an unknown plan id.
var ErrPlanNotFound = errors.New("localstore: plan not found")

// settingLastSyncAt is the settings key for the last successful full sync.
const settingLastSyncAt = "last_sync_at"

// Store is a SQLite-backed plan store. A Store is safe for concurrent use;
// the underlying pool is capped at one connection so SQLite sees a single
// writer.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the plan database at dbPath, applying pragmas
// and pending migrations. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("opening plan database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("localstore: open sqlite: %w", err)
	}

	// Sole-writer: one connection avoids SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("localstore: %s: %w", p, err)
		}
	}

	return nil
}

// GetAll returns every plan, most recently created first.
func (s *Store) GetAll(ctx context.Context) ([]plan.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM plans ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("localstore: listing plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.Plan

	for rows.Next() {
		var data string

		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("localstore: scanning plan row: %w", err)
		}

		var p plan.Plan
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("localstore: decoding plan: %w", err)
		}

		plans = append(plans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: iterating plan rows: %w", err)
	}

	return plans, nil
}

// Get returns the plan with the given id, or ErrPlanNotFound.
func (s *Store) Get(ctx context.Context, id string) (*plan.Plan, error) {
	var data string

	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM plans WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("localstore: plan %s: %w", id, ErrPlanNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("localstore: loading plan %s: %w", id, err)
	}

	var p plan.Plan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("localstore: decoding plan %s: %w", id, err)
	}

	return &p, nil
}

// Upsert inserts or replaces a plan by id.
func (s *Store) Upsert(ctx context.Context, p plan.Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("localstore: encoding plan %s: %w", p.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, month, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			month = excluded.month,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		p.ID, p.Month, string(data), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("localstore: upserting plan %s: %w", p.ID, err)
	}

	return nil
}

// Remove deletes a plan by id. Removing an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("localstore: removing plan %s: %w", id, err)
	}

	return nil
}

// ReplaceAll atomically replaces the entire collection with plans.
// Used to commit the resolved result of a full sync in one step.
func (s *Store) ReplaceAll(ctx context.Context, plans []plan.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM plans`); err != nil {
		return fmt.Errorf("localstore: clearing plans: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO plans (id, month, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("localstore: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range plans {
		p := &plans[i]

		data, jsonErr := json.Marshal(p)
		if jsonErr != nil {
			return fmt.Errorf("localstore: encoding plan %s: %w", p.ID, jsonErr)
		}

		if _, execErr := stmt.ExecContext(ctx, p.ID, p.Month, string(data), p.CreatedAt, p.UpdatedAt); execErr != nil {
			return fmt.Errorf("localstore: inserting plan %s: %w", p.ID, execErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("localstore: commit replace: %w", err)
	}

	s.logger.Debug("plan collection replaced", "count", len(plans))

	return nil
}

// MigrationStatus returns the persisted one-time migration status.
func (s *Store) MigrationStatus(ctx context.Context) (msync.MigrationStatus, error) {
	var (
		st         msync.MigrationStatus
		proposedAt sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT proposed, completed, declined, last_proposed_at, migrated_count
		 FROM migration_status WHERE id = 1`).
		Scan(&st.Proposed, &st.Completed, &st.Declined, &proposedAt, &st.MigratedCount)
	if err != nil {
		return msync.MigrationStatus{}, fmt.Errorf("localstore: loading migration status: %w", err)
	}

	if proposedAt.Valid && proposedAt.String != "" {
		t := plan.ParseTime(proposedAt.String)
		if !t.IsZero() {
			st.LastProposedAt = &t
		}
	}

	return st, nil
}

// SetMigrationStatus persists the one-time migration status.
func (s *Store) SetMigrationStatus(ctx context.Context, st msync.MigrationStatus) error {
	var proposedAt any
	if st.LastProposedAt != nil {
		proposedAt = plan.Timestamp(*st.LastProposedAt)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE migration_status
		 SET proposed = ?, completed = ?, declined = ?, last_proposed_at = ?, migrated_count = ?
		 WHERE id = 1`,
		st.Proposed, st.Completed, st.Declined, proposedAt, st.MigratedCount)
	if err != nil {
		return fmt.Errorf("localstore: saving migration status: %w", err)
	}

	return nil
}

// LastSyncAt returns the time of the last successful full sync, or nil if
// the collection has never been synced.
func (s *Store) LastSyncAt(ctx context.Context) (*time.Time, error) {
	var value string

	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingLastSyncAt).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("localstore: loading last sync time: %w", err)
	}

	t := plan.ParseTime(value)
	if t.IsZero() {
		return nil, nil
	}

	return &t, nil
}

// SetLastSyncAt records the time of the last successful full sync.
func (s *Store) SetLastSyncAt(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		settingLastSyncAt, plan.Timestamp(t))
	if err != nil {
		return fmt.Errorf("localstore: saving last sync time: %w", err)
	}

	return nil
}
