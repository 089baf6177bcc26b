// Package forward delivers flushed batches to the downstream agent runner
// over HTTP. It implements the queue's Processor, Steerer, and Canceler
// contracts: a run is one POST whose response arrives when the runner
// finishes, steering injects messages into a run that is still open, and
// cancel asks the runner to abandon one.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inletd/inlet/internal/queue"
	"github.com/inletd/inlet/pkg/message"
)

const (
	defaultRunTimeout = 60 * time.Second

	// Steer and Cancel sit on the submission path, so they get a short
	// deadline independent of the run timeout.
	controlTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Interface guards.
var (
	_ queue.Processor = (*Client)(nil)
	_ queue.Steerer   = (*Client)(nil)
	_ queue.Canceler  = (*Client)(nil)
)

// Config holds forwarder settings.
type Config struct {
	// BaseURL is the runner's endpoint root, e.g. "http://127.0.0.1:9000".
	BaseURL string

	// Token, when set, is sent as a bearer token on every request.
	Token string

	// Timeout bounds a single run request. Defaults to 60s.
	Timeout time.Duration
}

// Client is a thin HTTP wrapper around the runner's runs API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a forwarder client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// runRequest is the body of POST /runs.
type runRequest struct {
	RunID    string                    `json:"run_id"`
	Session  string                    `json:"session"`
	Agent    string                    `json:"agent"`
	Channel  string                    `json:"channel"`
	ChatID   string                    `json:"chat_id"`
	ThreadID string                    `json:"thread_id,omitempty"`
	Messages []*message.InboundMessage `json:"messages"`
}

// steerRequest is the body of POST /runs/{id}/messages.
type steerRequest struct {
	Messages []*message.InboundMessage `json:"messages"`
}

// Process implements queue.Processor. It posts the batch to the runner and
// blocks until the runner responds, which is when the run has finished.
func (c *Client) Process(ctx context.Context, run queue.Run) error {
	payload := runRequest{
		RunID:    run.ID,
		Session:  run.Session.String(),
		Agent:    run.Session.Agent,
		Channel:  run.Session.Channel,
		ChatID:   run.Session.ChatID,
		ThreadID: run.Session.ThreadID,
		Messages: run.Messages,
	}

	status, body, err := c.post(ctx, "/runs", payload)
	if err != nil {
		return fmt.Errorf("forward: run %s: %w", run.ID, err)
	}
	if status/100 != 2 {
		return fmt.Errorf("forward: run %s: runner returned %d: %s", run.ID, status, snippet(body))
	}
	return nil
}

// Steer implements queue.Steerer. A 2xx means the runner folded the
// messages into the open run; 404, 409, and 410 mean the run is no longer
// steerable, which is a clean rejection rather than an error.
func (c *Client) Steer(ctx context.Context, runID string, msgs []*message.InboundMessage) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	status, body, err := c.post(ctx, "/runs/"+url.PathEscape(runID)+"/messages", steerRequest{Messages: msgs})
	if err != nil {
		return false, fmt.Errorf("forward: steer run %s: %w", runID, err)
	}

	switch {
	case status/100 == 2:
		return true, nil
	case status == http.StatusNotFound, status == http.StatusConflict, status == http.StatusGone:
		c.logger.Debug("forward: run not steerable",
			"run_id", runID,
			"status", status,
		)
		return false, nil
	default:
		return false, fmt.Errorf("forward: steer run %s: runner returned %d: %s", runID, status, snippet(body))
	}
}

// Cancel implements queue.Canceler. A run the runner no longer knows about
// counts as canceled.
func (c *Client) Cancel(ctx context.Context, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	status, body, err := c.post(ctx, "/runs/"+url.PathEscape(runID)+"/cancel", nil)
	if err != nil {
		return fmt.Errorf("forward: cancel run %s: %w", runID, err)
	}

	switch {
	case status/100 == 2:
		return nil
	case status == http.StatusNotFound, status == http.StatusConflict, status == http.StatusGone:
		return nil
	default:
		return fmt.Errorf("forward: cancel run %s: runner returned %d: %s", runID, status, snippet(body))
	}
}

// post sends a JSON POST to the given path and returns the status code and
// response body.
func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// snippet trims a response body down to something log-sized.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "(empty body)"
	}
	return s
}
