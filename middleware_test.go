package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/contract"
)

// logLines decodes the JSON log records written to buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	return lines
}

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// inProcess mounts routes on a server with mw and returns it for direct
// ServeHTTP calls.
func inProcess(t *testing.T, mw []contract.Middleware, routes ...contract.Route) *contract.Server {
	t.Helper()
	srv := contract.NewServer(contract.WithLogger(discardLogger()))
	srv.Use(mw...)
	require.NoError(t, srv.Mount(routes...))
	return srv
}

func getItemRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/items/1", nil)
	req.Header.Set("X-Trace", "t")
	return req
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	srv := inProcess(t, []contract.Middleware{contract.Recovery(jsonLogger(&buf))},
		contract.Bind(getItem(), func(context.Context, *getItemIn) (contract.Outcome[item, apiError], error) {
			panic("boom")
		}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, getItemRequest())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "panic recovered", lines[0]["msg"])
	assert.Equal(t, "boom", lines[0]["panic"])
	assert.Equal(t, "/items/{id}", lines[0]["route"])
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg        []contract.RequestIDConfig
		header     string
		incoming   string
		wantID     string
		wantLength int
	}{
		"generated": {
			header:     "X-Request-ID",
			wantLength: 36,
		},
		"preserved": {
			header:   "X-Request-ID",
			incoming: "abc-123",
			wantID:   "abc-123",
		},
		"unusable incoming id replaced": {
			header:     "X-Request-ID",
			incoming:   "bad id\twith spaces",
			wantLength: 36,
		},
		"custom header and generator": {
			cfg: []contract.RequestIDConfig{{
				Header:    "X-Correlation-ID",
				Generator: func() string { return "fixed" },
			}},
			header: "X-Correlation-ID",
			wantID: "fixed",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var seen string
			srv := inProcess(t, []contract.Middleware{contract.RequestID(tc.cfg...)},
				contract.Bind(getItem(), func(ctx context.Context, _ *getItemIn) (contract.Outcome[item, apiError], error) {
					seen = contract.GetRequestID(ctx)
					return contract.Ok[apiError](item{}), nil
				}))

			req := getItemRequest()
			if tc.incoming != "" {
				req.Header.Set(tc.header, tc.incoming)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			got := rec.Header().Get(tc.header)
			assert.Equal(t, got, seen)
			if tc.wantID != "" {
				assert.Equal(t, tc.wantID, got)
			} else {
				assert.Len(t, got, tc.wantLength)
			}
		})
	}
}

func TestGetRequestID_missing(t *testing.T) {
	t.Parallel()

	assert.Empty(t, contract.GetRequestID(context.Background()))
}

func TestLogger(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		req       *http.Request
		handler   contract.Handler[getItemIn, item, apiError]
		wantRoute string
		wantLevel string
		wantCode  float64
	}{
		"matched route": {
			req:       getItemRequest(),
			handler:   echoItem,
			wantRoute: "/items/{id}",
			wantLevel: "INFO",
			wantCode:  http.StatusOK,
		},
		"server error": {
			req: getItemRequest(),
			handler: func(context.Context, *getItemIn) (contract.Outcome[item, apiError], error) {
				return contract.Outcome[item, apiError]{}, contract.Error(http.StatusBadGateway, "upstream")
			},
			wantRoute: "/items/{id}",
			wantLevel: "ERROR",
			wantCode:  http.StatusBadGateway,
		},
		"unmatched": {
			req:       httptest.NewRequest(http.MethodGet, "/missing", nil),
			handler:   echoItem,
			wantLevel: "INFO",
			wantCode:  http.StatusNotFound,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			srv := inProcess(t, []contract.Middleware{contract.RequestID(), contract.Logger(jsonLogger(&buf))},
				contract.Bind(getItem(), tc.handler))

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, tc.req)

			lines := logLines(t, &buf)
			require.Len(t, lines, 1)
			line := lines[0]
			assert.Equal(t, "request", line["msg"])
			assert.Equal(t, tc.wantLevel, line["level"])
			assert.Equal(t, tc.wantRoute, line["route"])
			assert.Equal(t, tc.wantCode, line["status"])
			assert.Equal(t, rec.Header().Get("X-Request-ID"), line["request_id"])
		})
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	srv := inProcess(t, []contract.Middleware{contract.RateLimit(contract.RateLimitConfig{
		Rate:  0.5,
		Burst: 1,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Client")
		},
	})}, contract.Bind(getItem(), echoItem))

	send := func(client string) *httptest.ResponseRecorder {
		req := getItemRequest()
		req.Header.Set("X-Client", client)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("a").Code)

	limited := send("a")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", limited.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusOK, send("b").Code, "keys are limited separately")
}

func TestRateLimit_custom_response(t *testing.T) {
	t.Parallel()

	srv := inProcess(t, []contract.Middleware{contract.RateLimit(contract.RateLimitConfig{
		Rate:  1,
		Burst: 1,
		OnLimit: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	})}, contract.Bind(getItem(), echoItem))

	srv.ServeHTTP(httptest.NewRecorder(), getItemRequest())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, getItemRequest())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	var (
		hasDeadline bool
		remaining   time.Duration
	)
	srv := inProcess(t, []contract.Middleware{contract.Timeout(time.Minute)},
		contract.Bind(getItem(), func(ctx context.Context, _ *getItemIn) (contract.Outcome[item, apiError], error) {
			var deadline time.Time
			deadline, hasDeadline = ctx.Deadline()
			remaining = time.Until(deadline)
			return contract.Ok[apiError](item{}), nil
		}))

	srv.ServeHTTP(httptest.NewRecorder(), getItemRequest())

	assert.True(t, hasDeadline)
	assert.LessOrEqual(t, remaining, time.Minute)
	assert.Greater(t, remaining, 50*time.Second)
}

func TestTimeout_responses(t *testing.T) {
	t.Parallel()

	t.Run("handler in time", func(t *testing.T) {
		t.Parallel()

		srv := inProcess(t, []contract.Middleware{contract.Timeout(time.Minute)}, contract.Bind(getItem(), echoItem))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, getItemRequest())

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"id":"1","name":"t"}`, rec.Body.String())
	})

	t.Run("deadline passed", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		srv := inProcess(t, []contract.Middleware{contract.Timeout(20 * time.Millisecond)},
			contract.Bind(getItem(), func(context.Context, *getItemIn) (contract.Outcome[item, apiError], error) {
				<-release
				return contract.Ok[apiError](item{Name: "late"}), nil
			}))
		defer close(release)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, getItemRequest())

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		assert.NotContains(t, rec.Body.String(), "late")
	})

	t.Run("panic reaches recovery", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		srv := inProcess(t, []contract.Middleware{contract.Recovery(jsonLogger(&buf)), contract.Timeout(time.Minute)},
			contract.Bind(getItem(), func(context.Context, *getItemIn) (contract.Outcome[item, apiError], error) {
				panic("boom")
			}))

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, getItemRequest())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		lines := logLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "boom", lines[0]["panic"])
	})
}

func TestRateLimit_zero_rate(t *testing.T) {
	t.Parallel()

	srv := inProcess(t, []contract.Middleware{contract.RateLimit(contract.RateLimitConfig{Rate: 0, Burst: 1})},
		contract.Bind(getItem(), echoItem))

	first := httptest.NewRecorder()
	srv.ServeHTTP(first, getItemRequest())
	assert.Equal(t, http.StatusOK, first.Code)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, getItemRequest())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"), "a bucket that never refills has no retry time")
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body       string
		chunked    bool
		wantStatus int
	}{
		"within limit": {
			body:       `{"name":"x"}`,
			wantStatus: http.StatusCreated,
		},
		"declared length over limit": {
			body:       `{"name":"` + strings.Repeat("x", 64) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		"unknown length over limit": {
			body:       `{"name":"` + strings.Repeat("x", 64) + `"}`,
			chunked:    true,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := inProcess(t, []contract.Middleware{contract.BodyLimit(32)},
				contract.Bind(postItems(), func(context.Context, *createItemIn) (contract.Outcome[contract.Void, contract.Void], error) {
					return contract.Ok[contract.Void](contract.Void{}), nil
				}))

			req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.chunked {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}
