package Workspace

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
)

// ErrUnavailable is matched by every failure of an upstream call.
var ErrUnavailable = errors.New("workspace upstream unavailable")

// UpstreamError describes a failed upstream call. Status is zero when no
// response was received at all.
type UpstreamError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: upstream returned status %d", e.Method, e.Path, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUnavailable }

// Path builds an upstream /api path from raw segments, escaping each one.
func Path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/api/" + strings.Join(escaped, "/")
}

// Client talks to the external workspace service with a fixed basic-auth
// credential. Calls are bounded by the client timeout and never retried.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

func NewClient(baseURL, user, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		user:     user,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

// Do sends body (JSON encoded when not nil) and returns the raw response body
// of a 2xx reply.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	if c.baseURL == "" {
		return 0, nil, &UpstreamError{Method: method, Path: path, Err: errors.New("no upstream configured")}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("error marshaling JSON: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, &UpstreamError{Method: method, Path: path, Err: err}
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &UpstreamError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &UpstreamError{Method: method, Path: path, Err: fmt.Errorf("error reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, respBody, &UpstreamError{Method: method, Path: path, Status: resp.StatusCode}
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	_, body, err := c.Do(ctx, http.MethodGet, path, nil)
	return body, err
}
