package contract

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// writeProblem writes p as an RFC 9457 problem details response.
func writeProblem(w http.ResponseWriter, p *ProblemDetail) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(p)
}

func newProblem(status int, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// bindProblem converts an input decoding failure into the problem sent
// back instead of calling the handler.
func bindProblem(err error) *ProblemDetail {
	status := http.StatusBadRequest

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBindSecurity):
		status = http.StatusUnauthorized
	}

	p := newProblem(status, err.Error())
	p.Errors = validationErrors(err)
	return p
}

// writeUnexpected answers a handler error that is not part of the contract.
// Errors carrying a status keep it; anything else becomes a 500 whose
// detail is hidden when mask is set.
func writeUnexpected(w http.ResponseWriter, r *http.Request, logger *slog.Logger, mask bool, err error) {
	var pd *ProblemDetail
	if errors.As(err, &pd) {
		writeProblem(w, pd)
		return
	}

	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	detail := err.Error()
	if mask && status >= http.StatusInternalServerError {
		detail = http.StatusText(status)
	}
	writeProblem(w, newProblem(status, detail))
}
