// Package contracttest runs contract servers in tests and calls them
// through the typed client or with raw requests.
package contracttest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bjaus/contract"
)

// Server is a contract.Server listening on a local test address, with a
// client pointed at it.
type Server struct {
	*httptest.Server
	Client *contract.Client
}

// NewServer starts srv and returns it with a client. The server is closed
// when the test ends.
func NewServer(t testing.TB, srv *contract.Server, opts ...contract.ClientOption) *Server {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client, err := contract.NewClient(ts.URL, opts...)
	if err != nil {
		t.Fatalf("contracttest: new client: %v", err)
	}
	return &Server{Server: ts, Client: client}
}

// Call sends in to e through the test client. Errors outside the contract
// fail the test.
func Call[In, Out, Err any](t testing.TB, s *Server, e contract.Endpoint[In, Out, Err], in In) contract.Outcome[Out, Err] {
	t.Helper()
	res, err := contract.Call(context.Background(), s.Client, e, in)
	if err != nil {
		t.Fatalf("contracttest: call %s %s: %v", e.Method(), e.Path(), err)
	}
	return res
}

// Response is a raw response read in full.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends a raw request, bypassing the contract. headers are key, value
// pairs. Use it to send input the typed client would never produce.
func Do(t testing.TB, s *Server, method, path, body string, headers ...string) *Response {
	t.Helper()
	if len(headers)%2 != 0 {
		t.Fatalf("contracttest: headers must be key, value pairs")
	}

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.URL+path, r)
	if err != nil {
		t.Fatalf("contracttest: create request: %v", err)
	}
	for i := 0; i < len(headers); i += 2 {
		req.Header.Add(headers[i], headers[i+1])
	}

	resp, err := s.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("contracttest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("contracttest: close body: %v", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("contracttest: read body: %v", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
}

// Problem decodes the body as problem details.
func (r *Response) Problem(t testing.TB) *contract.ProblemDetail {
	t.Helper()
	var pd contract.ProblemDetail
	if err := json.Unmarshal(r.Body, &pd); err != nil {
		t.Fatalf("contracttest: decode problem: %v (body %q)", err, r.Body)
	}
	return &pd
}

// Counter wraps a handler and counts its invocations.
type Counter[In, Out, Err any] struct {
	n atomic.Int64
	h contract.Handler[In, Out, Err]
}

// Count wraps h.
func Count[In, Out, Err any](h contract.Handler[In, Out, Err]) *Counter[In, Out, Err] {
	return &Counter[In, Out, Err]{h: h}
}

// Handler returns the counting handler.
func (c *Counter[In, Out, Err]) Handler() contract.Handler[In, Out, Err] {
	return func(ctx context.Context, in *In) (contract.Outcome[Out, Err], error) {
		c.n.Add(1)
		return c.h(ctx, in)
	}
}

// Calls returns the number of invocations so far.
func (c *Counter[In, Out, Err]) Calls() int { return int(c.n.Load()) }
