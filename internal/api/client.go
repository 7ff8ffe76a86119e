package api

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
	"time"

	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/models"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Status int
	Body   ErrorResponse
}

func (e *StatusError) Error() string {
	msg := e.Body.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, msg)
}

// ErrorKind classifies the response for apperr.KindOf.
func (e *StatusError) ErrorKind() apperr.Kind {
	return apperr.FromHTTPStatus(e.Status)
}

// Is lets errors.Is(err, apperr.ErrConflict) and friends match by kind.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*apperr.Error)
	return ok && t.Kind == e.ErrorKind()
}

// Client calls the tasktime server on behalf of one user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client. A non-positive timeout uses DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Start opens a session on taskID.
func (c *Client) Start(ctx context.Context, taskID string) (*models.TimeSession, error) {
	var session models.TimeSession
	if err := c.do(ctx, http.MethodPost, "/time/start", TaskRequest{TaskID: taskID}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Stop closes the caller's active session on taskID.
func (c *Client) Stop(ctx context.Context, taskID string) (*models.TimeSession, error) {
	var session models.TimeSession
	if err := c.do(ctx, http.MethodPost, "/time/stop", TaskRequest{TaskID: taskID}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Sessions lists every session on taskID with the caller's stats.
func (c *Client) Sessions(ctx context.Context, taskID string) (*SessionsResponse, error) {
	var resp SessionsResponse
	path := "/time/sessions?task_id=" + url.QueryEscape(taskID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ActiveSession returns the caller's active session on taskID, or nil.
func (c *Client) ActiveSession(ctx context.Context, taskID string) (*models.TimeSession, error) {
	resp, err := c.Sessions(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return resp.Stats.ActiveSession, nil
}

// Batch fetches summaries for up to 100 task ids.
func (c *Client) Batch(ctx context.Context, taskIDs []string) (map[string]Summary, error) {
	var resp BatchResponse
	if err := c.do(ctx, http.MethodPost, "/time/batch", BatchRequest{TaskIDs: taskIDs}, &resp); err != nil {
		return nil, err
	}
	if resp.Times == nil {
		resp.Times = map[string]Summary{}
	}
	return resp.Times, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and transport failures never mean the server applied the change.
		return apperr.Wrap(apperr.KindTransient, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, &statusErr.Body)
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ConflictSession returns the active session carried by a 409 response, if any.
func ConflictSession(err error) *models.TimeSession {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusConflict {
		return statusErr.Body.ActiveSession
	}
	return nil
}
