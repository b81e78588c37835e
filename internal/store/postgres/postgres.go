// Package postgres provides a PostgreSQL-backed [store.Store] holding one
// row per participant per standup day in a standup_entries table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/standvox/standvox/internal/store"
)

var _ store.Store = (*Store)(nil)

const ddlStandupEntries = `
CREATE TABLE IF NOT EXISTS standup_entries (
    day            DATE    NOT NULL,
    no             INTEGER NOT NULL,
    name           TEXT    NOT NULL,
    yesterday_work TEXT    NOT NULL DEFAULT '',
    today_work     TEXT    NOT NULL DEFAULT '',
    blockers       TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (day, no)
);

CREATE INDEX IF NOT EXISTS idx_standup_entries_name
    ON standup_entries (name);
`

// Store is a PostgreSQL-backed [store.Store]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] so the standup_entries table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("standup store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("standup store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("standup store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the standup_entries table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlStandupEntries); err != nil {
		return fmt.Errorf("create standup_entries: %w", err)
	}
	return nil
}

// Ping verifies database connectivity. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("standup store: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveDay implements [store.Store]. The day's rows are replaced atomically.
func (s *Store) SaveDay(ctx context.Context, day time.Time, records []store.DayRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("standup store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM standup_entries WHERE day = $1`, day); err != nil {
		return fmt.Errorf("standup store: clear day: %w", err)
	}

	const q = `
		INSERT INTO standup_entries
		    (day, no, name, yesterday_work, today_work, blockers)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, r := range records {
		if _, err := tx.Exec(ctx, q, day, r.No, r.Name, r.YesterdayWork, r.TodayWork, r.Blockers); err != nil {
			return fmt.Errorf("standup store: insert record %d: %w", r.No, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("standup store: commit: %w", err)
	}
	return nil
}

// LoadDay implements [store.Store]. A day with no rows yields an empty slice.
func (s *Store) LoadDay(ctx context.Context, day time.Time) ([]store.DayRecord, error) {
	const q = `
		SELECT day, no, name, yesterday_work, today_work, blockers
		FROM   standup_entries
		WHERE  day = $1
		ORDER  BY no`

	rows, err := s.pool.Query(ctx, q, day)
	if err != nil {
		return nil, fmt.Errorf("standup store: load day: %w", err)
	}
	defer rows.Close()

	records := []store.DayRecord{}
	for rows.Next() {
		var (
			r   store.DayRecord
			d   time.Time
		)
		if err := rows.Scan(&d, &r.No, &r.Name, &r.YesterdayWork, &r.TodayWork, &r.Blockers); err != nil {
			return nil, fmt.Errorf("standup store: scan record: %w", err)
		}
		r.Date = d.Format(store.DateLayout)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("standup store: iterate records: %w", err)
	}
	return records, nil
}

// LoadPrevious implements [store.Store].
func (s *Store) LoadPrevious(ctx context.Context, day time.Time) ([]store.DayRecord, error) {
	return s.LoadDay(ctx, day.AddDate(0, 0, -1))
}
