// Package sheet talks to the spreadsheet scripting endpoint that backs
// the legacy task and expense ledgers. Every call goes through one
// action-dispatching URL; responses wrap their payload in a status
// envelope.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/erezmus/crewdesk/internal/apperr"
	"github.com/erezmus/crewdesk/internal/board"
	"github.com/erezmus/crewdesk/internal/identity"
	"github.com/erezmus/crewdesk/internal/retry"
)

// Expense is one row of the expense ledger.
type Expense struct {
	ID            string  `json:"id,omitempty"`
	EmployeeName  string  `json:"employeeName"`
	SupplierName  string  `json:"supplierName,omitempty"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount"`
	Category      string  `json:"category,omitempty"`
	Description   string  `json:"description,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
}

// Data is the per-user payload returned by the fetch action.
type Data struct {
	Tasks    []board.WorkItem `json:"tasks"`
	Expenses []Expense        `json:"expenses"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	User    *identity.User  `json:"user,omitempty"`
	ID      string          `json:"id,omitempty"`
}

// Client wraps the scripting endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
	logger     zerolog.Logger
}

// NewClient creates a client for the given endpoint URL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retry.DefaultConfig(),
		logger:     logger.With().Str("component", "sheet").Logger(),
	}
}

// Login verifies credentials against the endpoint's user sheet and
// returns the matched user record.
func (c *Client) Login(ctx context.Context, username, password string) (identity.User, error) {
	payload := map[string]string{
		"action":   "login",
		"username": username,
		"password": password,
	}

	var env envelope
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var callErr error
		env, callErr = c.post(ctx, payload)
		return callErr
	})
	if err != nil {
		return identity.User{}, err
	}
	if env.Status != "success" || env.User == nil {
		msg := env.Message
		if msg == "" {
			msg = "login rejected"
		}
		return identity.User{}, fmt.Errorf("%s: %w", msg, apperr.ErrPermissionDenied)
	}
	return *env.User, nil
}

// FetchData pulls the tasks and expenses visible to the given user.
func (c *Client) FetchData(ctx context.Context, user identity.User) (Data, error) {
	q := url.Values{}
	q.Set("action", "getData")
	q.Set("userId", user.ID)
	q.Set("role", string(user.Role))

	var env envelope
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var callErr error
		env, callErr = c.get(ctx, q)
		return callErr
	})
	if err != nil {
		return Data{}, err
	}
	if env.Status != "success" {
		return Data{}, apperr.NewAPIError("sheet", http.StatusOK, env.Message)
	}

	var data Data
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Data{}, fmt.Errorf("decode sheet data: %w", err)
		}
	}
	return data, nil
}

// AddTask mirrors a new work item into the task sheet. Fire and forget:
// the response body is ignored, only transport failures surface.
func (c *Client) AddTask(ctx context.Context, item board.WorkItem) error {
	body := map[string]any{"action": "addTask", "task": item}
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.fire(ctx, body)
	})
}

// AddExpense appends a row to the expense ledger. Fire and forget.
func (c *Client) AddExpense(ctx context.Context, e Expense) error {
	body := map[string]any{"action": "addExpense", "expense": e}
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.fire(ctx, body)
	})
}

// Ping verifies the endpoint is reachable. Used by the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?action=ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheet endpoint: %w", apperr.ErrUnavailable)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return apperr.NewAPIError("sheet", resp.StatusCode, "endpoint unhealthy")
	}
	return nil
}

func (c *Client) get(ctx context.Context, q url.Values) (envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return envelope{}, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, payload any) (envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) fire(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheet endpoint: %w", apperr.ErrUnavailable)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return apperr.NewAPIError("sheet", resp.StatusCode, "write rejected")
	}
	c.logger.Debug().Int("status", resp.StatusCode).Msg("sheet write dispatched")
	return nil
}

func (c *Client) do(req *http.Request) (envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("sheet endpoint: %w", apperr.ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return envelope{}, fmt.Errorf("read sheet response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return envelope{}, apperr.NewAPIError("sheet", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("decode sheet response: %w", err)
	}
	return env, nil
}
