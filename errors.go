package contract

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for input decoding. The server answers them with a
// problem details response without invoking the handler.
var (
	ErrBindPath     = errors.New("bind path")
	ErrBindQuery    = errors.New("bind query")
	ErrBindHeader   = errors.New("bind header")
	ErrBindCookie   = errors.New("bind cookie")
	ErrBindBody     = errors.New("bind body")
	ErrBindSecurity = errors.New("bind security")
)

// Sentinel errors for contract definitions. They surface at registration,
// before any request is served.
var (
	ErrInvalidEndpoint    = errors.New("invalid endpoint")
	ErrDuplicateRoute     = errors.New("duplicate route")
	ErrDuplicateOperation = errors.New("duplicate operation id")
)

// Sentinel errors for client calls.
var (
	ErrTransport        = errors.New("transport failure")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrEncodeRequest    = errors.New("encode request")
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response. The server writes
// it for input decoding failures and unexpected handler errors; the client
// returns it as an error when it receives one.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string            `json:"type,omitempty"`
	Title    string            `json:"title,omitempty"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// ValidationError describes a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// HTTPError is an error with an HTTP status code. Handlers may return it as
// the Go error of a Handler to pick a status outside the contract.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// TransportError reports a client call that failed below the contract:
// connection errors, timeouts, cancelled contexts, or unreadable responses.
// It is never converted into the endpoint's declared error type.
type TransportError struct {
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// UnexpectedStatusError reports a response whose status is neither the
// declared success status, a 2xx, nor a declared error status.
type UnexpectedStatusError struct {
	Status int
	Body   string
}

func (e *UnexpectedStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Is matches ErrUnexpectedStatus.
func (e *UnexpectedStatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// StatusCode returns the HTTP status code.
func (e *UnexpectedStatusError) StatusCode() int { return e.Status }
