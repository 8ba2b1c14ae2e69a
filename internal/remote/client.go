package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"schedsync/internal/event"
	appLog "schedsync/internal/log"
	"schedsync/internal/store"
)

const (
	DefaultTimeout = 15 * time.Second

	DefaultListPath   = "/sch/seleteAll.do"
	DefaultCreatePath = "/sch/insert.do"
	DefaultUpdatePath = "/sch/update.do"
	DefaultDeletePath = "/sch/delete.do"
)

// maxErrorBody bounds how much of a failed response is kept in StatusError.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	// BaseURL is the service root, e.g. "https://sched.example.com".
	BaseURL string
	// Timeout bounds each HTTP round trip. Zero means DefaultTimeout.
	Timeout time.Duration

	ListPath   string
	CreatePath string
	UpdatePath string
	DeletePath string

	// Headers are added to every request (e.g. a session cookie).
	Headers map[string]string

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// StatusError reports a non-2xx answer from the service.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + ": " + e.Body
}

// Client talks JSON over HTTP POST to the scheduling service. It implements
// store.Remote.
type Client struct {
	client  *http.Client
	baseURL string
	paths   map[store.Op]string
	headers map[string]string
}

var _ store.Remote = (*Client)(nil)

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		client:  hc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		paths: map[store.Op]string{
			store.OpListEvents:  orDefault(opts.ListPath, DefaultListPath),
			store.OpCreateEvent: orDefault(opts.CreatePath, DefaultCreatePath),
			store.OpUpdateEvent: orDefault(opts.UpdatePath, DefaultUpdatePath),
			store.OpDeleteEvent: orDefault(opts.DeletePath, DefaultDeletePath),
		},
		headers: opts.Headers,
	}
}

func (c *Client) ListEvents(ctx context.Context, req store.ListRequest) ([]event.Wire, error) {
	body, err := c.post(ctx, store.OpListEvents, req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []event.Wire
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return rows, nil
}

func (c *Client) CreateEvent(ctx context.Context, payload store.Payload) (store.Response, error) {
	return c.post(ctx, store.OpCreateEvent, payload)
}

func (c *Client) UpdateEvent(ctx context.Context, payload store.Payload) (store.Response, error) {
	return c.post(ctx, store.OpUpdateEvent, payload)
}

func (c *Client) DeleteEvent(ctx context.Context, req store.DeleteRequest) (store.Response, error) {
	return c.post(ctx, store.OpDeleteEvent, req)
}

func (c *Client) post(ctx context.Context, op store.Op, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}

	url := c.baseURL + c.paths[op]
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	appLog.Debug("remote call start", "op", op, "url", url, "request_id", reqID)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}

	appLog.Debug("remote call done", "op", op, "request_id", reqID, "status", resp.StatusCode, "elapsed", time.Since(start))
	return body, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
