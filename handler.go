package contract

import "context"

// Void is used as a type parameter when an endpoint has no inputs, no
// response body, or no declared error type.
type Void struct{}

// Outcome is the result of a handler or a client call. It holds either a
// success value or a declared failure value, never both.
type Outcome[Out, Err any] struct {
	out    Out
	err    Err
	failed bool
}

// Ok returns a successful Outcome. The error type comes first so the
// output type is inferred from the argument:
//
//	return contract.Ok[APIError](item), nil
func Ok[Err, Out any](out Out) Outcome[Out, Err] {
	return Outcome[Out, Err]{out: out}
}

// Fail returns a failed Outcome carrying a declared error value:
//
//	return contract.Fail[Item](APIError{Code: "not_found"}), nil
func Fail[Out, Err any](err Err) Outcome[Out, Err] {
	return Outcome[Out, Err]{err: err, failed: true}
}

// Failed reports whether the outcome carries a declared error.
func (o Outcome[Out, Err]) Failed() bool { return o.failed }

// Value returns the success value. ok is false for a failed outcome.
func (o Outcome[Out, Err]) Value() (Out, bool) {
	return o.out, !o.failed
}

// Failure returns the declared error. ok is false for a successful outcome.
func (o Outcome[Out, Err]) Failure() (Err, bool) {
	return o.err, o.failed
}

// Handler implements the business logic of an endpoint. The framework owns
// decoding and encoding; handlers never see http.ResponseWriter or
// *http.Request.
//
// Declared failures are returned through the Outcome. A non-nil error is an
// unexpected failure outside the contract and is answered with a problem
// details response.
type Handler[In, Out, Err any] func(ctx context.Context, in *In) (Outcome[Out, Err], error)

// AuthFunc is server logic attached to the security inputs of an endpoint.
// It runs after security inputs are decoded and before any other input is
// decoded. A successful outcome carries the context passed on to the
// handler, typically enriched with SetValue.
type AuthFunc[In, Err any] func(ctx context.Context, in *In) (Outcome[context.Context, Err], error)
