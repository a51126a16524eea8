package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertRunSQL = `INSERT INTO report_runs (
        kind,
        generated_at,
        coverage,
        tickers_total,
        tickers_reported,
        missing,
        payload
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, kind, generated_at, coverage, tickers_total, tickers_reported, missing, payload, created_at;`

	listRecentRunsSQL = `SELECT
        id,
        kind,
        generated_at,
        coverage,
        tickers_total,
        tickers_reported,
        missing,
        payload,
        created_at
    FROM report_runs
    ORDER BY generated_at DESC
    LIMIT $1;`

	getRunSQL = `SELECT
        id,
        kind,
        generated_at,
        coverage,
        tickers_total,
        tickers_reported,
        missing,
        payload,
        created_at
    FROM report_runs
    WHERE id = $1;`

	countRunsSQL = `SELECT COUNT(*) FROM report_runs;`

	deleteRunsBeforeSQL = `DELETE FROM report_runs WHERE generated_at < $1;`

	insertMoverSQL = `INSERT INTO mover_rows (
        run_id,
        symbol,
        is_position,
        qualifies,
        override,
        window_label,
        pct_change,
        reason
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	listMoverHistorySQL = `SELECT
        m.id,
        m.run_id,
        m.symbol,
        m.is_position,
        m.qualifies,
        m.override,
        m.window_label,
        m.pct_change,
        m.reason,
        m.created_at
    FROM mover_rows m
    JOIN report_runs r ON r.id = m.run_id
    WHERE m.symbol = $1
      AND r.generated_at >= $2
      AND r.generated_at < $3
    ORDER BY r.generated_at;`

	listMoversForRunSQL = `SELECT
        id,
        run_id,
        symbol,
        is_position,
        qualifies,
        override,
        window_label,
        pct_change,
        reason,
        created_at
    FROM mover_rows
    WHERE run_id = $1
    ORDER BY symbol;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RunStore defines operations for report run persistence.
type RunStore interface {
	InsertRun(ctx context.Context, run ReportRun) (ReportRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]ReportRun, error)
	GetRun(ctx context.Context, id int64) (ReportRun, error)
	CountRuns(ctx context.Context) (int64, error)
	DeleteRunsBefore(ctx context.Context, olderThan time.Time) error
}

// MoverStore defines operations on per-ticker mover rows.
type MoverStore interface {
	InsertMovers(ctx context.Context, runID int64, rows []MoverRow) error
	ListMoverHistory(ctx context.Context, symbol string, from, to time.Time) ([]MoverRow, error)
	ListMoversForRun(ctx context.Context, runID int64) ([]MoverRow, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to report runs and mover rows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertRun persists a report run and returns the stored row.
func (s *Store) InsertRun(ctx context.Context, run ReportRun) (ReportRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return ReportRun{}, err
	}

	row := pool.QueryRow(ctx, insertRunSQL,
		run.Kind,
		run.GeneratedAt,
		run.Coverage,
		run.TickersTotal,
		run.TickersReported,
		run.Missing,
		[]byte(run.Payload),
	)
	stored, scanErr := scanRunRow(row)
	if scanErr != nil {
		return ReportRun{}, fmt.Errorf("insert run: %w", scanErr)
	}
	return stored, nil
}

// ListRecentRuns lists the most recent runs ordered by descending generation time.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]ReportRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]ReportRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanRunRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// GetRun fetches a single run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (ReportRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return ReportRun{}, err
	}
	run, scanErr := scanRunRow(pool.QueryRow(ctx, getRunSQL, id))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return ReportRun{}, scanErr
		}
		return ReportRun{}, fmt.Errorf("get run: %w", scanErr)
	}
	return run, nil
}

// CountRuns counts stored runs.
func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRunsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count runs: %w", scanErr)
	}
	return count, nil
}

// DeleteRunsBefore deletes historical runs; mover rows follow by cascade.
func (s *Store) DeleteRunsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteRunsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete runs before: %w", execErr)
	}
	return nil
}

// InsertMovers persists the flattened mover rows for a run.
func (s *Store) InsertMovers(ctx context.Context, runID int64, movers []MoverRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, m := range movers {
		var pct interface{}
		if m.PctChange != nil {
			pct = m.PctChange.String()
		}
		var reason interface{}
		if m.Reason != nil {
			reason = *m.Reason
		}

		if _, execErr := pool.Exec(ctx, insertMoverSQL,
			runID,
			m.Symbol,
			m.IsPosition,
			m.Qualifies,
			m.Override,
			m.WindowLabel,
			pct,
			reason,
		); execErr != nil {
			return fmt.Errorf("insert mover %s: %w", m.Symbol, execErr)
		}
	}
	return nil
}

// ListMoverHistory lists a symbol's mover rows across runs within a time window.
func (s *Store) ListMoverHistory(ctx context.Context, symbol string, from, to time.Time) ([]MoverRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMoverHistorySQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list mover history: %w", queryErr)
	}
	defer rows.Close()

	movers := make([]MoverRow, 0)
	for rows.Next() {
		m, scanErr := scanMoverRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		movers = append(movers, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return movers, nil
}

// ListMoversForRun lists the mover rows attached to one run.
func (s *Store) ListMoversForRun(ctx context.Context, runID int64) ([]MoverRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMoversForRunSQL, runID)
	if queryErr != nil {
		return nil, fmt.Errorf("list movers for run: %w", queryErr)
	}
	defer rows.Close()

	movers := make([]MoverRow, 0)
	for rows.Next() {
		m, scanErr := scanMoverRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		movers = append(movers, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return movers, nil
}

func scanRunRow(row pgx.Row) (ReportRun, error) {
	var (
		run     ReportRun
		payload json.RawMessage
	)
	if err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.GeneratedAt,
		&run.Coverage,
		&run.TickersTotal,
		&run.TickersReported,
		&run.Missing,
		&payload,
		&run.CreatedAt,
	); err != nil {
		return ReportRun{}, err
	}
	run.Payload = payload
	return run, nil
}

func scanMoverRow(rows pgx.Rows) (MoverRow, error) {
	var (
		m      MoverRow
		pct    sql.NullString
		reason sql.NullString
	)
	if err := rows.Scan(
		&m.ID,
		&m.RunID,
		&m.Symbol,
		&m.IsPosition,
		&m.Qualifies,
		&m.Override,
		&m.WindowLabel,
		&pct,
		&reason,
		&m.CreatedAt,
	); err != nil {
		return MoverRow{}, err
	}

	if pct.Valid {
		value, convErr := decimal.NewFromString(pct.String)
		if convErr != nil {
			return MoverRow{}, fmt.Errorf("parse pct change: %w", convErr)
		}
		m.PctChange = &value
	}
	if reason.Valid {
		msg := reason.String
		m.Reason = &msg
	}
	return m, nil
}
