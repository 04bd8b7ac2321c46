package contract

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Route is a bound endpoint that a Server can mount. Binding is the only
// implementation.
type Route interface {
	Describer
	httpHandler(cfg handlerConfig) http.Handler
}

// handlerConfig carries the server settings a route handler needs.
type handlerConfig struct {
	logger       *slog.Logger
	maskInternal bool
	pattern      string
}

// Binding pairs an endpoint with the handler implementing it. The type
// parameters guarantee the handler agrees with the endpoint's shapes.
type Binding[In, Out, Err any] struct {
	endpoint Endpoint[In, Out, Err]
	handler  Handler[In, Out, Err]
	auth     AuthFunc[In, Err]
}

// Bind pairs an endpoint with its handler.
func Bind[In, Out, Err any](e Endpoint[In, Out, Err], h Handler[In, Out, Err]) Binding[In, Out, Err] {
	return Binding[In, Out, Err]{endpoint: e, handler: h}
}

// WithAuth attaches server logic to the endpoint's security inputs. fn runs
// once the security inputs are decoded and before any other input is read;
// a failed outcome is written with the endpoint's error output and the
// handler is not called.
func (b Binding[In, Out, Err]) WithAuth(fn AuthFunc[In, Err]) Binding[In, Out, Err] {
	b.auth = fn
	return b
}

// Endpoint returns the bound endpoint.
func (b Binding[In, Out, Err]) Endpoint() Endpoint[In, Out, Err] { return b.endpoint }

// Describe describes the bound endpoint, reporting binding errors in Err.
func (b Binding[In, Out, Err]) Describe() Descriptor {
	d := b.endpoint.Describe()

	var errs []error
	if b.handler == nil {
		errs = append(errs, errors.New("nil handler"))
	}
	if b.auth != nil && !d.HasSecurity() {
		errs = append(errs, errors.New("auth function without a security input"))
	}
	if len(errs) > 0 {
		err := fmt.Errorf("%w: %s %s: %w", ErrInvalidEndpoint, d.Method, d.Path, errors.Join(errs...))
		d.Err = errors.Join(d.Err, err)
	}
	return d
}

func (b Binding[In, Out, Err]) httpHandler(cfg handlerConfig) http.Handler {
	security, regular := b.endpoint.splitInputs()
	output := b.endpoint.output
	errOut := b.endpoint.errOut

	fail := func(w http.ResponseWriter, r *http.Request, v Err) {
		if err := errOut.write(w, v); err != nil {
			b.writeError(w, r, cfg, err)
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, slot := withRouteSlot(r)
		slot.pattern = cfg.pattern
		ctx := r.Context()

		var in In
		for _, s := range security {
			if err := s.decodeFrom(r, &in); err != nil {
				writeProblem(w, bindProblem(fmt.Errorf("%w: %w", ErrBindSecurity, err)))
				return
			}
		}

		if b.auth != nil {
			res, err := b.auth(ctx, &in)
			if err != nil {
				writeUnexpected(w, r, cfg.logger, cfg.maskInternal, err)
				return
			}
			if v, failed := res.Failure(); failed {
				fail(w, r, v)
				return
			}
			if authCtx, _ := res.Value(); authCtx != nil {
				ctx = authCtx
			}
		}

		for _, i := range regular {
			if err := i.decodeFrom(r, &in); err != nil {
				writeProblem(w, bindProblem(err))
				return
			}
		}

		res, err := b.handler(ctx, &in)
		if err != nil {
			writeUnexpected(w, r, cfg.logger, cfg.maskInternal, err)
			return
		}
		if v, failed := res.Failure(); failed {
			fail(w, r, v)
			return
		}
		out, _ := res.Value()
		if err := output.write(w, out); err != nil {
			b.writeError(w, r, cfg, err)
		}
	})
}

// writeError handles a failed response write. Encoding failures happen
// before anything is sent and become a 500; anything later can only be
// logged.
func (b Binding[In, Out, Err]) writeError(w http.ResponseWriter, r *http.Request, cfg handlerConfig, err error) {
	if errors.Is(err, errEncodeResponse) {
		writeUnexpected(w, r, cfg.logger, cfg.maskInternal, err)
		return
	}
	cfg.logger.WarnContext(r.Context(), "write response",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
}
