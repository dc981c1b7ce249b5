// Package remote talks to the hosted backend: PostgREST-style collection
// endpoints under /rest/v1 and GoTrue-style password auth under /auth/v1.
// Every call is a single round trip; nothing is retried.
package remote

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
	"sync"
	"time"

	"swipedesk/internal/apperr"
	"swipedesk/internal/logging"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const requestIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	timeout    time.Duration
	log        *slog.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDiscard(c.log)
	return c
}

// SetAccessToken switches the bearer token used for collection calls. An
// empty token falls back to the anon key.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return c.token
	}
	return c.anonKey
}

type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	header  http.Header
	bearer  string
	allow   []int
	discard bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	var bodyReader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, apperr.Remote(r.op, fmt.Errorf("marshal request body: %w", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
	if err != nil {
		return nil, apperr.Remote(r.op, fmt.Errorf("create request: %w", err))
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.anonKey)
	bearer := r.bearer
	if bearer == "" {
		bearer = c.bearer()
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	reqID, err := nanoid.Generate(requestIDAlphabet, 12)
	if err == nil {
		req.Header.Set("X-Request-Id", reqID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("backend request failed", "op", r.op, "method", r.method, "path", r.path, "request_id", reqID, "err", err)
		return nil, apperr.Remote(r.op, err)
	}
	defer resp.Body.Close()

	var body []byte
	if !r.discard || resp.StatusCode >= 400 {
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, apperr.Remote(r.op, fmt.Errorf("read response: %w", err))
		}
	}
	c.log.Debug("backend request",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", reqID,
	)

	out := &response{status: resp.StatusCode, header: resp.Header, body: body}
	if resp.StatusCode >= 400 {
		for _, ok := range r.allow {
			if ok == resp.StatusCode {
				return out, nil
			}
		}
		return nil, decodeError(r.op, resp.StatusCode, body)
	}
	return out, nil
}

type errorBody struct {
	Message          string `json:"message"`
	Code             any    `json:"code"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func decodeError(op string, status int, body []byte) *apperr.RemoteError {
	re := &apperr.RemoteError{Op: op, Status: status}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		switch {
		case eb.Message != "":
			re.Message = eb.Message
		case eb.ErrorDescription != "":
			re.Message = eb.ErrorDescription
		case eb.Msg != "":
			re.Message = eb.Msg
		case eb.Error != "":
			re.Message = eb.Error
		}
		switch code := eb.Code.(type) {
		case string:
			re.Code = code
		case float64:
			re.Code = fmt.Sprintf("%.0f", code)
		}
		if re.Code == "" && eb.Error != "" && eb.Error != re.Message {
			re.Code = eb.Error
		}
	}
	if re.Message == "" {
		re.Message = strings.TrimSpace(string(body))
	}
	if re.Message == "" {
		re.Message = http.StatusText(status)
	}
	return re
}
