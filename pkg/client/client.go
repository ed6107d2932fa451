// Package client is a Go client for the travel approvals HTTP API.
package client

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

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
)

const maxErrorBody = 64 << 10

var errServer = errors.New("server error")

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRefresher sets how an expired access token is renewed.
func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

// WithCircuitBreaker guards the transport with a breaker that opens after
// failures consecutive network or 5xx failures and probes again after cooldown.
func WithCircuitBreaker(failures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "approvals-api",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
		})
	}
}

// Client calls the approvals API on behalf of one Session.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	session   *Session
	refresher Refresher
	breaker   *gobreaker.CircuitBreaker
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, session *Session, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ValidationError{Field: "baseURL", Message: fmt.Sprintf("%q is not an absolute URL", baseURL)}
	}
	if session == nil {
		session = NewSession("")
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Session returns the client's session.
func (c *Client) Session() *Session {
	return c.session
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded unless it is already an io.Reader
	Body        any
	ContentType string
}

// Response is a raw successful answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do sends req with bearer auth. A 401 triggers exactly one token refresh
// and one retry; a second 401 expires the session.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	attempt := 0
	var resp *Response
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(0),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrAuthExpired) && c.session.State() == StateAuthenticated
		}),
	)
	err = r.Do(func() error {
		attempt++
		raw, err := c.send(ctx, req, body, contentType)
		if err != nil {
			return err
		}
		if raw.StatusCode == http.StatusUnauthorized {
			if attempt > 1 {
				c.session.Expire()
				return ErrAuthExpired
			}
			// refresh failure leaves the session expired, which stops the retry
			if rerr := c.session.refresh(ctx, c.refresher); rerr != nil {
				return rerr
			}
			return ErrAuthExpired
		}
		if raw.StatusCode < 200 || raw.StatusCode > 299 {
			return httpError(raw)
		}
		resp = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoJSON sends req and decodes the data field of the response envelope into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if !isJSON(resp) {
		return ErrSchemaMismatch
	}

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if !env.Success && env.Error != "" {
		return &HTTPError{StatusCode: resp.StatusCode, Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req Request, body []byte, contentType string) (*Response, error) {
	u := *c.baseURL
	u.Path = u.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	roundTrip := func() (*Response, error) {
		res, err := c.http.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
		}
		out := &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}
		if res.StatusCode >= 500 {
			return out, errServer
		}
		return out, nil
	}

	if c.breaker == nil {
		out, err := roundTrip()
		if errors.Is(err, errServer) {
			return out, nil
		}
		return out, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return roundTrip()
	})
	switch {
	case errors.Is(err, errServer):
		return result.(*Response), nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	case err != nil:
		return nil, err
	}
	return result.(*Response), nil
}

func encodeBody(req Request) ([]byte, string, error) {
	switch b := req.Body.(type) {
	case nil:
		return nil, req.ContentType, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("read request body: %w", err)
		}
		return data, req.ContentType, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		ct := req.ContentType
		if ct == "" {
			ct = "application/json"
		}
		return data, ct, nil
	}
}

func isJSON(resp *Response) bool {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(resp.Body)
	return ct == "" && len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// httpError builds an HTTPError, taking the message from the first of
// error, message or details in a JSON body.
func httpError(resp *Response) error {
	he := &HTTPError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	if !isJSON(resp) {
		return he
	}

	body := resp.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return he
	}
	for _, key := range []string{"error", "message", "details"} {
		switch v := fields[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				he.Message = v
				return he
			}
		case nil:
		default:
			if data, err := json.Marshal(v); err == nil {
				he.Message = string(data)
				return he
			}
		}
	}
	return he
}
