// Package asana is a minimal client for the Asana REST API. Calls are
// authenticated per request with a bearer token so a single client can serve
// every stored credential.
package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://app.asana.com/api/1.0"

const taskOptFields = "name,notes,completed,due_on,due_at,assignee.name,projects.name,permalink_url"

type Config struct {
	BaseURL string
	Debug   bool
}

type Client struct {
	log        *zap.Logger
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(log *zap.Logger, config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		log:     log,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		// Asana free-tier quota is 150 requests per minute
		limiter: rate.NewLimiter(rate.Every(time.Minute/150), 10),
	}
}

// apiError is returned for non-2xx responses.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("asana API status %d: %s", e.StatusCode, e.Body)
}

// do performs a request and decodes the enveloped "data" field into out.
func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("Asana API call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("unmarshal response envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("unmarshal response data: %w", err)
	}
	return nil
}

// GetTask fetches one task with the fields the bot renders.
func (c *Client) GetTask(ctx context.Context, token, taskID string) (*Task, error) {
	var task Task
	q := url.Values{"opt_fields": {taskOptFields}}
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID, token, q, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, token, projectID string) (*Project, error) {
	var project Project
	q := url.Values{"opt_fields": {"name,notes,color"}}
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectID, token, q, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetUser fetches one user.
func (c *Client) GetUser(ctx context.Context, token, userID string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/"+userID, token, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetMe fetches the authenticated user.
func (c *Client) GetMe(ctx context.Context, token string) (*User, error) {
	return c.GetUser(ctx, token, "me")
}

// ListWorkspaces lists workspaces visible to the token.
func (c *Client) ListWorkspaces(ctx context.Context, token string) ([]Workspace, error) {
	var workspaces []Workspace
	if err := c.do(ctx, http.MethodGet, "/workspaces", token, nil, nil, &workspaces); err != nil {
		return nil, err
	}
	return workspaces, nil
}

// ListProjects lists projects in a workspace.
func (c *Client) ListProjects(ctx context.Context, token, workspaceID string) ([]Project, error) {
	var projects []Project
	q := url.Values{"workspace": {workspaceID}, "opt_fields": {"name,color"}}
	if err := c.do(ctx, http.MethodGet, "/projects", token, q, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListMyTasks lists incomplete tasks assigned to the token's user in a
// workspace.
func (c *Client) ListMyTasks(ctx context.Context, token, workspaceID string) ([]Task, error) {
	var tasks []Task
	q := url.Values{
		"assignee":        {"me"},
		"workspace":       {workspaceID},
		"completed_since": {"now"},
		"opt_fields":      {taskOptFields},
	}
	if err := c.do(ctx, http.MethodGet, "/tasks", token, q, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
