package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backlab/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ UserStore = (*SQLiteStore)(nil)
var _ RunStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	id               TEXT PRIMARY KEY,
	user_id          INTEGER NOT NULL REFERENCES users(id),
	strategy         TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	interval         TEXT NOT NULL,
	start_at         TEXT NOT NULL,
	end_at           TEXT NOT NULL,
	initial_capital  REAL NOT NULL,
	params           TEXT NOT NULL,
	result           TEXT NOT NULL,
	total_return_pct REAL NOT NULL,
	created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_user_created
	ON backtest_runs (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_runs_user_return
	ON backtest_runs (user_id, total_return_pct DESC);
`

// SQLiteStore implements UserStore and RunStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs
// the schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// UserStore implementation
// ---------------------------------------------------------------------------

// CreateUser inserts a new user and fills in its assigned ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

// GetUserByID retrieves a user by primary key.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByLogin retrieves a user by username or email.
func (s *SQLiteStore) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ? OR email = ?`,
		login, login)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var createdAt int64
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return &u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts a completed backtest run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.BacktestRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backtest_runs
		 (id, user_id, strategy, symbol, interval, start_at, end_at,
		  initial_capital, params, result, total_return_pct, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, string(run.Strategy), run.Symbol, string(run.Interval),
		run.Start.UTC().Format(time.RFC3339Nano), run.End.UTC().Format(time.RFC3339Nano),
		run.InitialCapital, string(params), string(result),
		run.TotalReturnPct, run.CreatedAt.UnixNano())
	return err
}

// GetRun retrieves a run by id, scoped to its owner.
func (s *SQLiteStore) GetRun(ctx context.Context, id string, userID int64) (*domain.BacktestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, strategy, symbol, interval, start_at, end_at,
		        initial_capital, params, result, total_return_pct, created_at
		 FROM backtest_runs WHERE id = ? AND user_id = ?`, id, userID)
	return scanRun(row)
}

// ListRuns returns summaries of the user's runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, userID int64) ([]domain.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy, symbol, interval, start_at, end_at,
		        initial_capital, total_return_pct, created_at
		 FROM backtest_runs WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []domain.RunSummary{}
	for rows.Next() {
		var sm domain.RunSummary
		var strategy, interval, start, end string
		var createdAt int64
		if err := rows.Scan(&sm.ID, &strategy, &sm.Symbol, &interval,
			&start, &end, &sm.InitialCapital, &sm.TotalReturnPct, &createdAt); err != nil {
			return nil, err
		}
		sm.Strategy = domain.StrategyID(strategy)
		sm.Interval = domain.Interval(interval)
		if sm.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, err
		}
		if sm.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
			return nil, err
		}
		sm.CreatedAt = time.Unix(0, createdAt).UTC()
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

// GreatestReturn returns the user's run with the highest total return
// percentage; ties go to the earliest-created run, then the lowest id.
func (s *SQLiteStore) GreatestReturn(ctx context.Context, userID int64) (*domain.BacktestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, strategy, symbol, interval, start_at, end_at,
		        initial_capital, params, result, total_return_pct, created_at
		 FROM backtest_runs WHERE user_id = ?
		 ORDER BY total_return_pct DESC, created_at ASC, id ASC
		 LIMIT 1`, userID)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*domain.BacktestRun, error) {
	var run domain.BacktestRun
	var strategy, interval, start, end, params, result string
	var createdAt int64
	err := row.Scan(&run.ID, &run.UserID, &strategy, &run.Symbol, &interval,
		&start, &end, &run.InitialCapital, &params, &result,
		&run.TotalReturnPct, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Strategy = domain.StrategyID(strategy)
	run.Interval = domain.Interval(interval)
	if run.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return nil, fmt.Errorf("parse run start: %w", err)
	}
	if run.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
		return nil, fmt.Errorf("parse run end: %w", err)
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &run.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &run, nil
}
