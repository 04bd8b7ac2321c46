package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Doer sends HTTP requests. *http.Client implements it; tests and
// decorators may supply their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls endpoints of a server at a base URL.
type Client struct {
	baseURL   *url.URL
	doer      Doer
	limiter   *rate.Limiter
	userAgent string
	header    http.Header
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDoer sets the transport used to send requests.
func WithDoer(d Doer) ClientOption {
	return func(c *Client) {
		c.doer = d
	}
}

// WithHTTPClient sends requests with hc.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.doer = hc
	}
}

// WithClientRateLimit limits outgoing calls to rps per second with the
// given burst. Calls wait for a token or fail when their context ends.
func WithClientRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithDefaultHeader adds a header to every request. Headers declared as
// endpoint inputs take precedence.
func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.header.Add(key, value)
	}
}

// WithClientLogger logs each call at debug level.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the server at baseURL, which may include
// a path prefix such as "https://api.example.com/v1".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		doer:    http.DefaultClient,
		header:  make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Call sends in to the endpoint and decodes the response.
//
// A response with the declared success status, or any 2xx, yields a
// successful Outcome. A declared error status yields a failed Outcome with
// the decoded error. Every other result is returned as an error: a
// *ProblemDetail when the server rejected the request itself, an
// *UnexpectedStatusError for undeclared statuses, and a *TransportError
// when the request could not be completed or the response not read.
func Call[In, Out, Err any](ctx context.Context, c *Client, e Endpoint[In, Out, Err], in In) (Outcome[Out, Err], error) {
	var zero Outcome[Out, Err]
	if err := e.Err(); err != nil {
		return zero, err
	}

	req, err := newRequest(ctx, c, e, &in)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	resp, body, err := c.send(req)
	if err != nil {
		return zero, err
	}
	if c.logger != nil {
		c.logger.DebugContext(ctx, "call",
			"method", req.Method,
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"latency", time.Since(start),
		)
	}

	return decodeResponse(e, req, resp, body)
}

// Stub is a client function bound to one endpoint.
type Stub[In, Out, Err any] func(ctx context.Context, in In) (Outcome[Out, Err], error)

// NewStub binds an endpoint to a client. It fails when the endpoint is
// invalid.
func NewStub[In, Out, Err any](c *Client, e Endpoint[In, Out, Err]) (Stub[In, Out, Err], error) {
	if err := e.Err(); err != nil {
		return nil, err
	}
	return func(ctx context.Context, in In) (Outcome[Out, Err], error) {
		return Call(ctx, c, e, in)
	}, nil
}

func newRequest[In, Out, Err any](ctx context.Context, c *Client, e Endpoint[In, Out, Err], in *In) (*http.Request, error) {
	out := newOutbound()
	for _, i := range e.inputs {
		if err := i.encodeTo(in, out); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncodeRequest, err)
		}
	}

	p, err := resolvePath(e.segments, out.pathValues)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeRequest, err)
	}

	u := *c.baseURL
	raw := strings.TrimSuffix(u.EscapedPath(), "/") + p
	if u.Path, err = url.PathUnescape(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeRequest, err)
	}
	u.RawPath = raw
	u.RawQuery = out.query.Encode()

	var body io.Reader
	if out.body != nil {
		body = bytes.NewReader(out.body)
	}
	req, err := http.NewRequestWithContext(ctx, e.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeRequest, err)
	}

	for k, vs := range c.header {
		req.Header[k] = slices.Clone(vs)
	}
	for k, vs := range out.header {
		req.Header[k] = slices.Clone(vs)
	}
	for _, ck := range out.cookies {
		req.AddCookie(ck)
	}
	if out.contentType != "" {
		req.Header.Set("Content-Type", out.contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", acceptHeader(e.output.desc.ContentType, e.errOut.contentType()))
	return req, nil
}

// acceptHeader lists the media types the endpoint can answer with.
func acceptHeader(types ...string) string {
	accept := make([]string, 0, len(types)+1)
	for _, t := range append(types, problemContentType) {
		if t != "" && !slices.Contains(accept, t) {
			accept = append(accept, t)
		}
	}
	return strings.Join(accept, ", ")
}

// send waits for the rate limiter, sends req, and reads the whole body.
func (c *Client) send(req *http.Request) (*http.Response, []byte, error) {
	fail := func(op string, err error) error {
		return &TransportError{Op: op, Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, nil, fail("wait", err)
		}
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, nil, fail("send", err)
	}
	defer func() {
		//nolint:errcheck,gosec // body already read
		resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fail("read", err)
	}
	return resp, body, nil
}

func decodeResponse[In, Out, Err any](e Endpoint[In, Out, Err], req *http.Request, resp *http.Response, body []byte) (Outcome[Out, Err], error) {
	var zero Outcome[Out, Err]
	status := resp.StatusCode
	ct := resp.Header.Get("Content-Type")
	problem := ct != "" && sameMediaType(ct, problemContentType)

	decodeFail := func(err error) error {
		return &TransportError{Op: "decode", Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}

	switch {
	case status == e.output.desc.Status || (status >= 200 && status < 300):
		out, err := e.output.read(body)
		if err != nil {
			return zero, decodeFail(err)
		}
		return Ok[Err](out), nil

	case e.errOut.declares(status) && (!problem || sameMediaType(e.errOut.contentType(), problemContentType)):
		v, err := e.errOut.read(body)
		if err != nil {
			return zero, decodeFail(err)
		}
		return Fail[Out](v), nil

	case problem:
		var pd ProblemDetail
		if err := json.Unmarshal(body, &pd); err != nil {
			return zero, decodeFail(err)
		}
		if pd.Status == 0 {
			pd.Status = status
		}
		return zero, &pd

	default:
		return zero, &UnexpectedStatusError{Status: status, Body: truncate(string(body), 512)}
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsProblem reports whether err is a problem details response with the
// given status.
func IsProblem(err error, status int) bool {
	var pd *ProblemDetail
	return errors.As(err, &pd) && pd.Status == status
}
