// Package remote is the HTTP client for the authoritative sync server. The
// engine only needs success or failure from it, plus a transient-vs-permanent
// classification that decides whether a queued mutation is retried or dropped.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/notesync/engine/internal/models"
)

// DefaultTimeout bounds each remote call. A timed-out push classifies as
// transient so the mutation stays queued.
const DefaultTimeout = 15 * time.Second

// Invoker abstracts the remote operations the sync engine performs
type Invoker interface {
	Invoke(ctx context.Context, operationName string, payload json.RawMessage) (json.RawMessage, error)
	Pull(ctx context.Context, since int64) (*models.PullResponse, error)
}

// Error is a classified remote failure
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Transient  bool
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote %s: %s", e.Op, e.Message)
}

// IsTransient reports whether the error is a connectivity-class failure that
// warrants retrying later. Anything that provably reached the server and was
// rejected is permanent.
func IsTransient(err error) bool {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Transient
	}
	return false
}

// Client talks to the sync server over HTTP
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client. A timeout of zero falls back to DefaultTimeout.
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

// Invoke executes a named remote operation. The operation name maps onto the
// server's RPC route, e.g. "tasks.update" -> POST /api/ops/tasks.update.
func (c *Client) Invoke(ctx context.Context, operationName string, payload json.RawMessage) (json.RawMessage, error) {
	endpoint := c.baseURL + "/api/ops/" + url.PathEscape(operationName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Op: operationName, Message: err.Error(), Transient: false}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure: the request did not definitively reach
		// the server, so the operation is safe to replay.
		return nil, &Error{Op: operationName, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: operationName, Message: err.Error(), Transient: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Op:         operationName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Transient:  transientStatus(resp.StatusCode),
		}
	}

	return body, nil
}

// Pull fetches server changes after the given watermark
func (c *Client) Pull(ctx context.Context, since int64) (*models.PullResponse, error) {
	endpoint := c.baseURL + "/api/changes?since=" + strconv.FormatInt(since, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Op: "pull", Message: err.Error(), Transient: false}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: "pull", Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "pull", Message: err.Error(), Transient: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Op:         "pull",
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Transient:  transientStatus(resp.StatusCode),
		}
	}

	var pull models.PullResponse
	if err := json.Unmarshal(body, &pull); err != nil {
		return nil, &Error{Op: "pull", Message: "malformed pull response: " + err.Error(), Transient: false}
	}
	return &pull, nil
}

// transientStatus classifies HTTP statuses: timeouts, throttling and server
// errors are retried; every other rejection is permanent.
func transientStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	}
	return false
}

func errorMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "request failed"
	}
	return msg
}
