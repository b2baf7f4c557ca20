// Package flowapi is a client for the orchestration platform REST API that
// registers compiled workflows and runs them.
package flowapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/animus-labs/trialflow/internal/platform/requestid"
)

var ErrNotFound = errors.New("platform resource not found")

type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if e.Code != "" && msg != "" {
		return fmt.Sprintf("platform api error (status=%d code=%s): %s", e.Status, e.Code, msg)
	}
	if msg != "" {
		return fmt.Sprintf("platform api error (status=%d): %s", e.Status, msg)
	}
	return fmt.Sprintf("platform api error (status=%d)", e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Temporary reports responses worth retrying.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTemporary reports whether err is a retryable platform response.
func IsTemporary(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

type Client struct {
	baseURL string
	project string
	http    *http.Client
}

// New builds a client. httpClient carries authentication; see auth.NewHTTPClient.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		project: strings.TrimSpace(cfg.Project),
		http:    httpClient,
	}, nil
}

func (c *Client) Project() string {
	return c.project
}

// RegisterWorkflow stores a workflow version on the platform. Registering a
// version that already exists succeeds.
func (c *Client) RegisterWorkflow(ctx context.Context, name, version string, definition []byte) error {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" || version == "" {
		return errors.New("workflow name and version are required")
	}
	if !json.Valid(definition) {
		return errors.New("workflow definition must be valid json")
	}
	body := registerWorkflowRequest{Name: name, Version: version, Definition: definition}
	err := c.do(ctx, http.MethodPost, c.path("workflows"), body, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return nil
	}
	return err
}

func (c *Client) LaunchExecution(ctx context.Context, req LaunchRequest) (Execution, error) {
	if strings.TrimSpace(req.Workflow) == "" || strings.TrimSpace(req.Version) == "" {
		return Execution{}, errors.New("workflow name and version are required")
	}
	if req.Inputs == nil {
		req.Inputs = map[string]string{}
	}
	var out Execution
	if err := c.do(ctx, http.MethodPost, c.path("executions"), req, &out); err != nil {
		return Execution{}, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return Execution{}, errors.New("platform returned an execution without id")
	}
	return out, nil
}

func (c *Client) GetExecution(ctx context.Context, id string) (Execution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Execution{}, errors.New("execution id is required")
	}
	var out Execution
	if err := c.do(ctx, http.MethodGet, c.path("executions", id), nil, &out); err != nil {
		return Execution{}, err
	}
	return out, nil
}

func (c *Client) ListNodeExecutions(ctx context.Context, id string) ([]NodeExecution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("execution id is required")
	}
	var out nodeExecutionList
	if err := c.do(ctx, http.MethodGet, c.path("executions", id, "nodes"), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) TerminateExecution(ctx context.Context, id, cause string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("execution id is required")
	}
	return c.do(ctx, http.MethodPost, c.path("executions", id, "terminate"), terminateRequest{Cause: strings.TrimSpace(cause)}, nil)
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, 0, len(parts)+3)
	escaped = append(escaped, "v1", "projects", url.PathEscape(c.project))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid, ok := requestid.FromContext(ctx); ok {
		req.Header.Set(requestid.Header, rid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode platform response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = strings.TrimSpace(body.Code)
		if apiErr.Code == "" {
			apiErr.Code = strings.TrimSpace(body.Error)
		}
		apiErr.Message = strings.TrimSpace(body.Message)
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}
