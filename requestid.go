package contract

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// maxRequestIDLen bounds incoming IDs, which end up in logs.
const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestIDConfig configures the RequestID middleware. Header defaults to
// "X-Request-ID" and Generator to a random UUID.
type RequestIDConfig struct {
	Header    string
	Generator func() string
}

// RequestID returns middleware that tags each request with an ID. A usable
// ID sent by the caller is kept; otherwise one is generated. The ID is
// echoed on the response and available to handlers through GetRequestID.
func RequestID(cfg ...RequestIDConfig) Middleware {
	header, generate := "X-Request-ID", uuid.NewString
	for _, c := range cfg {
		if c.Header != "" {
			header = c.Header
		}
		if c.Generator != nil {
			generate = c.Generator
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if !validRequestID(id) {
				id = generate()
			}
			w.Header().Set(header, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// GetRequestID returns the ID assigned by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// validRequestID accepts short IDs of visible ASCII characters.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := range len(id) {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
