// Package api is the HTTP client for the code-review backend.
//
// Every call is authenticated with the session cookie held in the client's
// cookie jar and unwraps the backend's {"success": ..., "data": ...} envelope.
// Calls are never retried; failures surface as *Error values that match the
// package sentinels with errors.Is.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	// BaseURL is the REST base, e.g. http://localhost:3000.
	BaseURL string
	// EventsURL is the base for upload event streams. Defaults to BaseURL.
	EventsURL string
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Client talks to the backend REST API.
type Client struct {
	baseURL   *url.URL
	eventsURL *url.URL
	hc        *http.Client
	log       zerolog.Logger
}

// NewClient creates a client with its own cookie jar.
func NewClient(opt Options) (*Client, error) {
	if opt.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	base, err := parseBase(opt.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	events := base
	if opt.EventsURL != "" {
		events, err = parseBase(opt.EventsURL)
		if err != nil {
			return nil, fmt.Errorf("parsing events url: %w", err)
		}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	timeout := opt.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:   base,
		eventsURL: events,
		hc:        &http.Client{Jar: jar, Timeout: timeout},
		log:       opt.Logger,
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", raw)
	}
	return u, nil
}

// BaseURL returns the REST base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// StreamClient returns an HTTP client that shares the cookie jar but has no
// overall timeout, for long-lived event streams.
func (c *Client) StreamClient() *http.Client {
	return &http.Client{Jar: c.hc.Jar, Transport: c.hc.Transport}
}

// SetCookies installs session cookies for the backend origin.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.hc.Jar.SetCookies(c.baseURL, cookies)
	if c.eventsURL.Host != c.baseURL.Host {
		c.hc.Jar.SetCookies(c.eventsURL, cookies)
	}
}

// Cookies returns the cookies the jar would send to the backend.
func (c *Client) Cookies() []*http.Cookie {
	return c.hc.Jar.Cookies(c.baseURL)
}

// envelope is the backend's response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	User    json.RawMessage `json:"user"`
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := joinPath(c.baseURL, path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs one request and returns the decoded envelope.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("api request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	env := &envelope{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return env, &Error{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	return env, nil
}

// call sends an optional JSON body and decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	env, err := c.do(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	return decodeData(env, out)
}

func decodeData(env *envelope, out any) error {
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding data: %w", err)
	}
	return nil
}

// joinPath appends an already escaped path to base.
func joinPath(base *url.URL, escaped string) url.URL {
	u := *base
	raw := strings.TrimRight(base.EscapedPath(), "/") + escaped
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path, u.RawPath = p, raw
	} else {
		u.Path, u.RawPath = raw, ""
	}
	return u
}

func sessionPath(id string, rest ...string) string {
	p := "/sessions/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}
