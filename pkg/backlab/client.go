// Package backlab provides a Go SDK for the backlab-server API.
package backlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"backlab/internal/httpapi"
)

// Client talks to a backlab-server instance. The zero value is not
// usable; create one with NewClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SetToken sets the bearer token used for authenticated calls. Register
// and Login call it automatically.
func (c *Client) SetToken(token string) { c.token = token }

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backlab: %d %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&envelope)
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Register creates an account and stores the returned token on the
// client.
func (c *Client) Register(ctx context.Context, username, email, password string) (*httpapi.TokenResponse, error) {
	var resp httpapi.TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register",
		httpapi.RegisterRequest{Username: username, Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Login authenticates by username or email and stores the returned
// token on the client.
func (c *Client) Login(ctx context.Context, login, password string) (*httpapi.TokenResponse, error) {
	var resp httpapi.TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		httpapi.LoginRequest{Login: login, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Profile returns the authenticated account.
func (c *Client) Profile(ctx context.Context) (*httpapi.UserResponse, error) {
	var resp httpapi.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Strategies lists the available strategies and their defaults.
func (c *Client) Strategies(ctx context.Context) (*httpapi.StrategiesResponse, error) {
	var resp httpapi.StrategiesResponse
	if err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunBacktest runs a backtest and returns the stored run.
func (c *Client) RunBacktest(ctx context.Context, req httpapi.BacktestRequest) (*httpapi.BacktestResponse, error) {
	var resp httpapi.BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/backtests", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBacktests lists the authenticated user's runs, newest first.
func (c *Client) ListBacktests(ctx context.Context) (*httpapi.RunListResponse, error) {
	var resp httpapi.RunListResponse
	if err := c.do(ctx, http.MethodGet, "/api/backtests", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBacktest fetches one run with its full result.
func (c *Client) GetBacktest(ctx context.Context, id string) (*httpapi.BacktestResponse, error) {
	var resp httpapi.BacktestResponse
	if err := c.do(ctx, http.MethodGet, "/api/backtests/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GreatestReturn fetches the run with the highest total return.
func (c *Client) GreatestReturn(ctx context.Context) (*httpapi.BacktestResponse, error) {
	var resp httpapi.BacktestResponse
	if err := c.do(ctx, http.MethodGet, "/api/backtests/greatest-return", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
