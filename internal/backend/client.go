// Package backend is the HTTP client for the storefront's backend REST API:
// catalog, orders, server-side cart, and account operations.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Credentials supplies the current session's opaque credentials.
type Credentials interface {
	// Credentials returns the bearer token and session cookie; either may be
	// empty.
	Credentials() (token, cookie string)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:3000.
	BaseURL string
	// Timeout bounds each call. Zero keeps the http.Client default.
	Timeout time.Duration
	// Transport is the RoundTripper used for calls. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
	// Credentials is consulted on every call. May be nil.
	Credentials Credentials
}

// Client calls the backend REST API.
type Client struct {
	base  *url.URL
	http  *http.Client
	creds Credentials
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse backend url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("backend url %q: scheme must be http or https", cfg.BaseURL)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base: base,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		creds: cfg.Credentials,
	}, nil
}

// SetCredentials replaces the credential source.
func (c *Client) SetCredentials(creds Credentials) {
	c.creds = creds
}

// Products returns the catalog endpoints.
func (c *Client) Products() *Products { return &Products{c: c} }

// Orders returns the order endpoints.
func (c *Client) Orders() *Orders { return &Orders{c: c} }

// Cart returns the server-side cart endpoints.
func (c *Client) Cart() *Cart { return &Cart{c: c} }

// Auth returns the account endpoints.
func (c *Client) Auth() *Auth { return &Auth{c: c} }

// call describes one backend request.
type call struct {
	method string
	path   string
	query  url.Values
	body   any
	// notFound is the error a 404 unwraps to.
	notFound error
}

// send performs the call and returns the response with its body fully read.
// Non-2xx statuses are returned as *Error.
func (c *Client) send(ctx context.Context, in call) (*http.Response, []byte, error) {
	u := *c.base
	u.Path = c.base.Path + in.path
	u.RawQuery = in.query.Encode()

	var body io.Reader
	if in.body != nil {
		data, err := json.Marshal(in.body)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "encode %s %s", in.method, in.path)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, u.String(), body)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "build %s %s", in.method, in.path)
	}
	req.Header.Set("Accept", "application/json")
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		token, cookie := c.creds.Credentials()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s %s", in.method, in.path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read %s %s", in.method, in.path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, data, newError(in.method, in.path, resp.StatusCode, data, in.notFound)
	}
	return resp, data, nil
}

// do performs the call and decodes a JSON response into out. It reports
// whether a body was decoded; empty bodies (e.g. 204) leave out untouched.
func (c *Client) do(ctx context.Context, in call, out any) (bool, error) {
	_, data, err := c.send(ctx, in)
	if err != nil {
		return false, err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, errors.Wrapf(err, "decode %s %s", in.method, in.path)
	}
	return true, nil
}
