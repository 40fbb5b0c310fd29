package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"backlab/internal/auth"
	"backlab/internal/backtest"
	"backlab/internal/domain"
	"backlab/internal/provider"
	"backlab/internal/store"
	"backlab/internal/util"
)

// Server serves the backlab HTTP API.
type Server struct {
	users    store.UserStore
	runs     store.RunStore
	provider provider.BarProvider
	auth     *auth.Authenticator
	runner   *backtest.Runner
	registry *backtest.Registry
	log      *slog.Logger

	maxBars    int
	ratePerMin int
	tokenTTL   time.Duration

	// Per-user limiters for POST /api/backtests. Key: user id.
	limiters sync.Map
}

// NewServer creates a Server wired to the given stores, provider, and
// authenticator. ratePerMin bounds backtest submissions per user;
// maxBars bounds the series size a single run may process.
func NewServer(
	users store.UserStore,
	runs store.RunStore,
	barProvider provider.BarProvider,
	authenticator *auth.Authenticator,
	registry *backtest.Registry,
	maxBars, ratePerMin int,
	tokenTTL time.Duration,
	log *slog.Logger,
) *Server {
	return &Server{
		users:      users,
		runs:       runs,
		provider:   barProvider,
		auth:       authenticator,
		runner:     backtest.NewRunner(registry),
		registry:   registry,
		log:        log,
		maxBars:    maxBars,
		ratePerMin: ratePerMin,
		tokenTTL:   tokenTTL,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/profile", s.requireAuth(s.handleProfile))
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("POST /api/backtests", s.requireAuth(s.handleRunBacktest))
	mux.HandleFunc("GET /api/backtests", s.requireAuth(s.handleListBacktests))
	mux.HandleFunc("GET /api/backtests/greatest-return", s.requireAuth(s.handleGreatestReturn))
	mux.HandleFunc("GET /api/backtests/{id}", s.requireAuth(s.handleGetBacktest))
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey int

const userIDKey ctxKey = iota

// requireAuth wraps a handler with bearer-token verification and puts
// the authenticated user id on the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, err := s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func userIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeDomainError maps engine and provider errors to HTTP statuses:
// configuration problems are the client's fault (400), data problems
// make the request unprocessable (422), everything else is a 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var (
		configErr       *domain.ConfigError
		insufficientErr *domain.InsufficientDataError
		integrityErr    *domain.DataIntegrityError
	)
	switch {
	case errors.As(err, &configErr):
		writeError(w, http.StatusBadRequest, configErr.Error())
	case errors.As(err, &insufficientErr):
		writeError(w, http.StatusUnprocessableEntity, insufficientErr.Error())
	case errors.As(err, &integrityErr):
		writeError(w, http.StatusUnprocessableEntity, integrityErr.Error())
	case errors.Is(err, provider.ErrNoData):
		writeError(w, http.StatusBadRequest, "no price data for requested symbol and range")
	default:
		s.log.Error("backtest failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ---------------------------------------------------------------------------
// Auth handlers
// ---------------------------------------------------------------------------

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if len(req.Username) < 3 {
		writeError(w, http.StatusBadRequest, "username must be at least 3 characters")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "email is not valid")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		s.log.Error("hashing password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &domain.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := s.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "username or email already taken")
			return
		}
		s.log.Error("creating user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info("user registered", "id", user.ID, "username", user.Username)
	s.writeToken(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.users.GetUserByLogin(r.Context(), strings.TrimSpace(req.Login))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "bad credentials")
			return
		}
		s.log.Error("looking up user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}

	s.writeToken(w, http.StatusOK, user)
}

func (s *Server) writeToken(w http.ResponseWriter, status int, user *domain.User) {
	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		s.log.Error("issuing token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, TokenResponse{
		Token:     token,
		ExpiresIn: int(s.tokenTTL.Seconds()),
		User:      convertUser(user),
	})
}

func convertUser(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUserByID(r.Context(), userIDFrom(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		s.log.Error("loading profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, convertUser(user))
}

// ---------------------------------------------------------------------------
// Strategy and backtest handlers
// ---------------------------------------------------------------------------

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	var infos []StrategyInfo
	for _, id := range s.registry.List() {
		defaults := make(map[domain.Interval]map[string]float64, len(domain.Intervals()))
		for _, iv := range domain.Intervals() {
			p, err := backtest.DefaultParams(id, iv)
			if err != nil {
				continue
			}
			defaults[iv] = p.Map(id)
		}
		infos = append(infos, StrategyInfo{ID: id, DefaultsByIval: defaults})
	}
	writeJSON(w, http.StatusOK, StrategiesResponse{Strategies: infos})
}

func (s *Server) limiterFor(userID int64) *util.RateLimiter {
	if v, ok := s.limiters.Load(userID); ok {
		return v.(*util.RateLimiter)
	}
	// The whole per-minute allowance may be spent in a burst.
	v, _ := s.limiters.LoadOrStore(userID, util.NewBurstRateLimiter(s.ratePerMin, s.ratePerMin))
	return v.(*util.RateLimiter)
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if !s.limiterFor(userID).Allow() {
		writeError(w, http.StatusTooManyRequests, "backtest rate limit exceeded, try again shortly")
		return
	}

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	strategy, err := domain.ParseStrategy(req.Strategy)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	interval, err := domain.ParseInterval(req.Interval)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if req.Start.IsZero() || req.End.IsZero() || !req.Start.Before(req.End) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	series, err := s.provider.GetBars(r.Context(), symbol, interval, req.Start, req.End)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if len(series.Bars) > s.maxBars {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("range spans %d bars, maximum is %d", len(series.Bars), s.maxBars))
		return
	}

	result, err := s.runner.Run(strategy, series, req.InitialCapital, req.Params)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	params, err := backtest.ResolveParams(strategy, interval, req.Params)
	if err != nil {
		// Run already resolved the same params; this cannot fail here.
		s.writeDomainError(w, err)
		return
	}

	run := &domain.BacktestRun{
		ID:             uuid.NewString(),
		UserID:         userID,
		Strategy:       strategy,
		Symbol:         symbol,
		Interval:       interval,
		Start:          req.Start,
		End:            req.End,
		InitialCapital: req.InitialCapital,
		Params:         params.Map(strategy),
		Result:         result,
		TotalReturnPct: result.TotalReturnPct,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.runs.SaveRun(r.Context(), run); err != nil {
		s.log.Error("saving run", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info("backtest complete",
		"user", userID,
		"run", run.ID,
		"strategy", strategy,
		"symbol", symbol,
		"bars", len(series.Bars),
		"return_pct", result.TotalReturnPct,
	)
	writeJSON(w, http.StatusCreated, convertRun(run))
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.ListRuns(r.Context(), userIDFrom(r))
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"), userIDFrom(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "backtest not found")
			return
		}
		s.log.Error("loading run", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, convertRun(run))
}

func (s *Server) handleGreatestReturn(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GreatestReturn(r.Context(), userIDFrom(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no backtests recorded yet")
			return
		}
		s.log.Error("loading greatest-return run", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, convertRun(run))
}
