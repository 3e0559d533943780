// Package apiclient is the runtime generated clients call into. A Client is
// immutable after construction and safe for concurrent use.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultContentType is assumed when a request carries no content-type header.
const DefaultContentType = "application/json"

// RequestEditorFn can modify a request before it is sent.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// URLBuilderFn joins the configured base URL and an operation path.
type URLBuilderFn func(baseURL, path string) (*url.URL, error)

// Config is the client configuration.
type Config struct {
	BaseURL string
	// Headers are sent with every request. Per-call headers override them.
	Headers map[string]string
	// ParseDates converts ISO-8601 timestamp strings of untyped responses to
	// time.Time.
	ParseDates     bool
	HTTPClient     *http.Client
	RequestEditors []RequestEditorFn
	// URLBuilder replaces the default base URL join.
	URLBuilder URLBuilderFn
}

// ClientOption configures a Client.
type ClientOption func(*Config)

func WithBaseURL(u string) ClientOption { return func(c *Config) { c.BaseURL = u } }

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Config) { c.HTTPClient = client }
}

// WithHeader sets a default header.
func WithHeader(key, value string) ClientOption {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[key] = value
	}
}

// WithHeaders merges h into the default headers.
func WithHeaders(h map[string]string) ClientOption {
	return func(c *Config) {
		for k, v := range h {
			WithHeader(k, v)(c)
		}
	}
}

func WithParseDates(on bool) ClientOption { return func(c *Config) { c.ParseDates = on } }

func WithRequestEditor(fn RequestEditorFn) ClientOption {
	return func(c *Config) { c.RequestEditors = append(c.RequestEditors, fn) }
}

func WithURLBuilder(fn URLBuilderFn) ClientOption { return func(c *Config) { c.URLBuilder = fn } }

// Request carries the per-call parts of a dispatch.
type Request struct {
	// Search holds query parameters as a map or a struct with json tags.
	Search any
	// Body is encoded according to the effective content-type header.
	Body    any
	Headers map[string]string
}

// Client dispatches requests for generated operations.
type Client struct {
	cfg Config
}

// New returns a Client configured by opts.
func New(opts ...ClientOption) *Client {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	cfg.Headers = headers
	return &Client{cfg: cfg}
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	cfg := c.cfg
	cfg.Headers = make(map[string]string, len(c.cfg.Headers))
	for k, v := range c.cfg.Headers {
		cfg.Headers[k] = v
	}
	cfg.RequestEditors = append([]RequestEditorFn(nil), c.cfg.RequestEditors...)
	return cfg
}

// URL builds the target of path with search appended as query parameters.
// By default path is joined onto the base URL path; relative segments are
// resolved and duplicate slashes collapsed.
func (c *Client) URL(path string, search any) (*url.URL, error) {
	build := c.cfg.URLBuilder
	if build == nil {
		build = joinURL
	}
	u, err := build(c.cfg.BaseURL, path)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build url for %q: %w", path, err)
	}
	fields, err := toFields(search)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode search: %w", err)
	}
	if len(fields) == 0 {
		return u, nil
	}
	q := u.Query()
	for _, k := range sortedKeys(fields) {
		if v, ok := formatValue(fields[k]); ok {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u, nil
}

func joinURL(baseURL, path string) (*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	p, query, _ := strings.Cut(path, "?")
	u := base.JoinPath(p)
	if query != "" {
		u.RawQuery = query
	}
	return u, nil
}

// Do dispatches a request and returns the decoded response: parsed JSON when
// possible, raw text otherwise. A non-2xx response is returned as *Error.
func (c *Client) Do(ctx context.Context, method, path string, req Request) (any, error) {
	raw, err := c.roundTrip(ctx, method, path, req)
	if err != nil {
		return nil, err
	}
	return c.decode(raw), nil
}

// Fetch dispatches a request and decodes the response into T. With
// ParseDates, time.Time fields accept every timestamp ParseDate does and
// untyped values inside T have their timestamps coerced.
func Fetch[T any](ctx context.Context, c *Client, method, path string, req Request) (T, error) {
	var out T
	raw, err := c.roundTrip(ctx, method, path, req)
	if err != nil {
		return out, err
	}
	switch p := any(&out).(type) {
	case *any:
		*p = c.decode(raw)
		return out, nil
	case *string:
		if err := json.Unmarshal(raw, p); err != nil {
			*p = string(raw)
		}
		return out, nil
	case *[]byte:
		*p = raw
		return out, nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if c.cfg.ParseDates {
		err = decodeWithDates(raw, &out)
	} else {
		err = json.Unmarshal(raw, &out)
	}
	if err != nil {
		return out, fmt.Errorf("apiclient: decode %s %s response: %w", strings.ToUpper(method), path, err)
	}
	return out, nil
}

func (c *Client) decode(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	if c.cfg.ParseDates {
		v = PopulateDates(v)
	}
	return v
}

func (c *Client) roundTrip(ctx context.Context, method, path string, r Request) ([]byte, error) {
	u, err := c.URL(path, r.Search)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	for k, v := range c.cfg.Headers {
		header.Set(k, v)
	}
	for k, v := range r.Headers {
		header.Set(k, v)
	}

	body, contentType, err := encodeBody(header.Get("Content-Type"), r.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode %s %s body: %w", strings.ToUpper(method), path, err)
	}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: create request: %w", err)
	}
	req.Header = header
	for _, edit := range c.cfg.RequestEditors {
		if err := edit(ctx, req); err != nil {
			return nil, fmt.Errorf("apiclient: request editor: %w", err)
		}
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %s %s: %w", req.Method, u.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read %s %s response: %w", req.Method, u.Redacted(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(req, resp, raw)
	}
	return raw, nil
}
