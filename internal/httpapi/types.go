// Package httpapi provides the REST API: account registration and
// login, strategy listing, and running and querying backtests.
package httpapi

import (
	"time"

	"backlab/internal/domain"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates by username or email.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expires_in"` // seconds
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// StrategyInfo describes one available strategy with its per-interval
// default parameters.
type StrategyInfo struct {
	ID             domain.StrategyID              `json:"id"`
	DefaultsByIval map[domain.Interval]map[string]float64 `json:"defaults_by_interval"`
}

// StrategiesResponse lists the available strategies.
type StrategiesResponse struct {
	Strategies []StrategyInfo `json:"strategies"`
}

// BacktestRequest runs a backtest.
type BacktestRequest struct {
	Strategy       string             `json:"strategy"`
	Symbol         string             `json:"symbol"`
	Interval       string             `json:"interval"`
	Start          time.Time          `json:"start"`
	End            time.Time          `json:"end"`
	InitialCapital float64            `json:"initial_capital"`
	Params         map[string]float64 `json:"params,omitempty"`
}

// BacktestResponse is a stored run with its full result.
type BacktestResponse struct {
	ID             string                 `json:"id"`
	Strategy       domain.StrategyID      `json:"strategy"`
	Symbol         string                 `json:"symbol"`
	Interval       domain.Interval        `json:"interval"`
	Start          time.Time              `json:"start"`
	End            time.Time              `json:"end"`
	InitialCapital float64                `json:"initial_capital"`
	Params         map[string]float64     `json:"params"`
	Result         *domain.BacktestResult `json:"result"`
	CreatedAt      time.Time              `json:"created_at"`
}

// RunListResponse lists a user's runs without result payloads.
type RunListResponse struct {
	Runs []domain.RunSummary `json:"runs"`
}

func convertRun(run *domain.BacktestRun) BacktestResponse {
	return BacktestResponse{
		ID:             run.ID,
		Strategy:       run.Strategy,
		Symbol:         run.Symbol,
		Interval:       run.Interval,
		Start:          run.Start,
		End:            run.End,
		InitialCapital: run.InitialCapital,
		Params:         run.Params,
		Result:         run.Result,
		CreatedAt:      run.CreatedAt,
	}
}
