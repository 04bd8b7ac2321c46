package contract

import "net/http"

// BodyLimit returns middleware that caps request bodies at maxBytes. A
// request announcing a larger Content-Length is rejected with a 413 problem
// before routing; a body that turns out larger while being decoded fails
// its body input with the same status.
func BodyLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeProblem(w, newProblem(http.StatusRequestEntityTooLarge, "request body too large"))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
