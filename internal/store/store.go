// Package store defines storage interfaces for users, backtest runs,
// and cached bar data, plus the SQLite and Parquet implementations.
package store

import (
	"context"
	"errors"
	"time"

	"backlab/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist or is
// not visible to the requesting user.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a unique constraint (username, email)
// would be violated.
var ErrConflict = errors.New("store: already exists")

// UserStore persists and retrieves user accounts.
type UserStore interface {
	// CreateUser inserts a new user and fills in its assigned ID.
	CreateUser(ctx context.Context, u *domain.User) error

	// GetUserByID retrieves a user by primary key.
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	// GetUserByLogin retrieves a user by username or email.
	GetUserByLogin(ctx context.Context, login string) (*domain.User, error)
}

// RunStore persists and retrieves backtest runs.
type RunStore interface {
	// SaveRun inserts a completed backtest run.
	SaveRun(ctx context.Context, run *domain.BacktestRun) error

	// GetRun retrieves a run by id, scoped to its owner.
	GetRun(ctx context.Context, id string, userID int64) (*domain.BacktestRun, error)

	// ListRuns returns summaries of the user's runs, newest first.
	ListRuns(ctx context.Context, userID int64) ([]domain.RunSummary, error)

	// GreatestReturn returns the user's run with the highest total
	// return percentage. Ties are broken by earliest creation time,
	// then by run id, so the result is deterministic.
	GreatestReturn(ctx context.Context, userID int64) (*domain.BacktestRun, error)
}

// BarCache persists fetched bar data so repeated backtests over the
// same range do not hit the remote provider.
type BarCache interface {
	// WriteBars merges bars into the cache for (symbol, interval).
	WriteBars(symbol string, interval domain.Interval, bars []domain.Bar) error

	// ReadBars returns cached bars for (symbol, interval) within
	// [start, end], in timestamp order.
	ReadBars(symbol string, interval domain.Interval, start, end time.Time) ([]domain.Bar, error)
}
