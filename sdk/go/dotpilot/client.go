package dotpilot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Synchronous asks run the whole tool loop, so it is longer than a plain REST call.
const DefaultHTTPTimeout = 2 * time.Minute

// Client wraps the HTTP interactions with the DotPilot REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// ToolCall is one tool invocation made during a run.
type ToolCall struct {
	Tool    string `json:"tool"`
	Args    any    `json:"args,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// Answer is the response of a synchronous ask.
type Answer struct {
	ID          string     `json:"id"`
	Input       string     `json:"input"`
	Output      string     `json:"output"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	Iterations  int        `json:"iterations"`
	Completed   bool       `json:"completed"`
	ToolResults []ToolCall `json:"tool_results"`
}

// RunRequest is the payload for queuing a run. ID makes the submission idempotent.
type RunRequest struct {
	ID       string         `json:"id,omitempty"`
	Query    string         `json:"query"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunSummary is the stored outcome of a queued run.
type RunSummary struct {
	RunID           string `json:"run_id"`
	Output          string `json:"output"`
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	Iterations      int    `json:"iterations"`
	ToolCalls       int    `json:"tool_calls"`
	FailedToolCalls int    `json:"failed_tool_calls"`
	Completed       bool   `json:"completed"`
}

// Run is a queued run and its current state.
type Run struct {
	ID         string         `json:"id"`
	Query      string         `json:"query"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Status     string         `json:"status"`
	Attempts   int            `json:"attempts"`
	MaxRetries int            `json:"max_retries"`
	LastError  string         `json:"last_error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Result     *RunSummary    `json:"result,omitempty"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

// Finished reports whether the run will not change any more.
func (r Run) Finished() bool {
	return r.Status == "succeeded" || (r.Status == "failed" && r.Attempts >= r.MaxRetries)
}

// RunStats aggregates queued runs by status.
type RunStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ListRunsOptions filters ListRuns. Zero values are omitted.
type ListRunsOptions struct {
	Statuses  []string
	Limit     int
	Offset    int
	Since     time.Time
	Ascending bool
	Search    string
}

// HistoryEntry is a persisted run record.
type HistoryEntry struct {
	ID              string `json:"id"`
	Query           string `json:"query"`
	Output          string `json:"output"`
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	Iterations      int    `json:"iterations"`
	ToolCalls       int    `json:"tool_calls"`
	FailedToolCalls int    `json:"failed_tool_calls"`
	Completed       bool   `json:"completed"`
	CreatedAt       int64  `json:"created_at"`
}

// Tool describes a tool the agent can call.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("dotpilot api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("dotpilot api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the DotPilot API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAccessToken sets the bearer token sent with every API call.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Ask runs a query synchronously and returns the agent's answer.
func (c *Client) Ask(ctx context.Context, query string) (Answer, error) {
	var answer Answer
	if err := c.post(ctx, "/api/v1/ask", map[string]string{"query": query}, &answer); err != nil {
		return Answer{}, err
	}
	return answer, nil
}

// SubmitRun queues a query for background execution.
func (c *Client) SubmitRun(ctx context.Context, req RunRequest) (Run, error) {
	var run Run
	if err := c.post(ctx, "/api/v1/runs", req, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// GetRun fetches a queued run by identifier.
func (c *Client) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), nil, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns lists queued runs, newest first unless opts.Ascending is set.
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOptions) ([]Run, error) {
	q := url.Values{}
	if len(opts.Statuses) > 0 {
		q.Set("status", strings.Join(opts.Statuses, ","))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if !opts.Since.IsZero() {
		q.Set("since", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	if opts.Ascending {
		q.Set("order", "asc")
	}
	if opts.Search != "" {
		q.Set("q", opts.Search)
	}
	var runs []Run
	if err := c.get(ctx, "/api/v1/runs", q, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// RunStats returns counts of queued runs by status.
func (c *Client) RunStats(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if err := c.get(ctx, "/api/v1/runs/stats", nil, &stats); err != nil {
		return RunStats{}, err
	}
	return stats, nil
}

// WaitRun polls a run until it finishes or ctx is done.
func (c *Client) WaitRun(ctx context.Context, id string, interval time.Duration) (Run, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		run, err := c.GetRun(ctx, id)
		if err != nil {
			return Run{}, err
		}
		if run.Finished() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// History returns the most recent persisted runs.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var entries []HistoryEntry
	if err := c.get(ctx, "/api/v1/history", q, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Tools lists the tools available to the agent.
func (c *Client) Tools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	if err := c.get(ctx, "/api/v1/tools", nil, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: apiErr})
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
