package contract

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
)

// Endpoint is the immutable description of one API operation: its method,
// path, ordered inputs, success output, and declared errors. The type
// parameters carry the input, output, and error shapes so a handler or
// client call that disagrees with the contract does not compile.
//
// Builder methods return a modified copy and never mutate the receiver, so
// a base endpoint can be extended into many concrete ones.
type Endpoint[In, Out, Err any] struct {
	method   string
	segments []Segment
	inputs   []Input[In]
	output   Output[Out]
	errOut   ErrorOutput[Err]
	meta     endpointMeta
	errs     []error
}

type endpointMeta struct {
	summary     string
	description string
	operationID string
	tags        []string
	deprecated  bool
}

var supportedMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// New starts an endpoint with the given method. Without Returns it answers
// 204 No Content; without Fails its error type is Void.
func New[In any](method string) Endpoint[In, Void, Void] {
	e := Endpoint[In, Void, Void]{
		output: Status(http.StatusNoContent),
		errOut: defaultErrorOutput(),
	}
	return e.WithMethod(method)
}

// Get starts a GET endpoint.
func Get[In any]() Endpoint[In, Void, Void] { return New[In](http.MethodGet) }

// Post starts a POST endpoint.
func Post[In any]() Endpoint[In, Void, Void] { return New[In](http.MethodPost) }

// Put starts a PUT endpoint.
func Put[In any]() Endpoint[In, Void, Void] { return New[In](http.MethodPut) }

// Patch starts a PATCH endpoint.
func Patch[In any]() Endpoint[In, Void, Void] { return New[In](http.MethodPatch) }

// Delete starts a DELETE endpoint.
func Delete[In any]() Endpoint[In, Void, Void] { return New[In](http.MethodDelete) }

func (e Endpoint[In, Out, Err]) clone() Endpoint[In, Out, Err] {
	e.segments = slices.Clone(e.segments)
	e.inputs = slices.Clone(e.inputs)
	e.errOut = e.errOut.clone()
	e.meta.tags = slices.Clone(e.meta.tags)
	e.errs = slices.Clone(e.errs)
	return e
}

func (e Endpoint[In, Out, Err]) fail(err error) Endpoint[In, Out, Err] {
	e.errs = append(e.errs, err)
	return e
}

// WithMethod sets the HTTP method.
func (e Endpoint[In, Out, Err]) WithMethod(method string) Endpoint[In, Out, Err] {
	e = e.clone()
	e.method = method
	return e
}

// WithPath sets the path from a template such as "/items/{id}".
func (e Endpoint[In, Out, Err]) WithPath(template string) Endpoint[In, Out, Err] {
	e = e.clone()
	segs, err := ParsePath(template)
	if err != nil {
		return e.fail(err)
	}
	e.segments = segs
	return e
}

// WithSegments sets the path from explicit segments.
func (e Endpoint[In, Out, Err]) WithSegments(segs ...Segment) Endpoint[In, Out, Err] {
	e = e.clone()
	if err := checkSegments(segs); err != nil {
		return e.fail(fmt.Errorf("path %q: %w", formatPath(segs), err))
	}
	e.segments = slices.Clone(segs)
	return e
}

// WithInput appends an input. Inputs are decoded in the order they were
// added.
func (e Endpoint[In, Out, Err]) WithInput(in Input[In]) Endpoint[In, Out, Err] {
	e = e.clone()
	e.inputs = append(e.inputs, in)
	return e
}

// WithSecurityInput appends an input that authenticates the request under
// the named security scheme. Security inputs are decoded before every other
// input and their failures are answered with 401.
func (e Endpoint[In, Out, Err]) WithSecurityInput(scheme string, in Input[In]) Endpoint[In, Out, Err] {
	e = e.clone()
	in.desc.Security = scheme
	if in.desc.SecurityScheme == nil {
		in.desc.SecurityScheme = &SecurityScheme{Type: "apiKey", In: string(in.desc.Kind), Name: in.desc.Name}
	}
	e.inputs = append(e.inputs, in)
	return e
}

// WithSummary sets the documentation summary.
func (e Endpoint[In, Out, Err]) WithSummary(s string) Endpoint[In, Out, Err] {
	e = e.clone()
	e.meta.summary = s
	return e
}

// WithDescription sets the documentation description.
func (e Endpoint[In, Out, Err]) WithDescription(d string) Endpoint[In, Out, Err] {
	e = e.clone()
	e.meta.description = d
	return e
}

// WithTags adds documentation tags.
func (e Endpoint[In, Out, Err]) WithTags(tags ...string) Endpoint[In, Out, Err] {
	e = e.clone()
	e.meta.tags = append(e.meta.tags, tags...)
	return e
}

// WithOperationID sets a custom OpenAPI operationId.
func (e Endpoint[In, Out, Err]) WithOperationID(id string) Endpoint[In, Out, Err] {
	e = e.clone()
	e.meta.operationID = id
	return e
}

// WithDeprecated marks the endpoint as deprecated in the documentation.
func (e Endpoint[In, Out, Err]) WithDeprecated() Endpoint[In, Out, Err] {
	e = e.clone()
	e.meta.deprecated = true
	return e
}

// Returns replaces the success output, changing the output type.
func Returns[In, Out, Err, Out2 any](e Endpoint[In, Out, Err], out Output[Out2]) Endpoint[In, Out2, Err] {
	e = e.clone()
	return Endpoint[In, Out2, Err]{
		method:   e.method,
		segments: e.segments,
		inputs:   e.inputs,
		output:   out,
		errOut:   e.errOut,
		meta:     e.meta,
		errs:     e.errs,
	}
}

// Fails replaces the declared errors, changing the error type.
func Fails[In, Out, Err, Err2 any](e Endpoint[In, Out, Err], errOut ErrorOutput[Err2]) Endpoint[In, Out, Err2] {
	e = e.clone()
	return Endpoint[In, Out, Err2]{
		method:   e.method,
		segments: e.segments,
		inputs:   e.inputs,
		output:   e.output,
		errOut:   errOut.clone(),
		meta:     e.meta,
		errs:     e.errs,
	}
}

// Extend lifts a base endpoint into a larger input type. embed locates the
// base input inside the new one, usually an embedded struct. The base
// inputs keep their position ahead of inputs added afterwards.
func Extend[Base, In, Out, Err any](base Endpoint[Base, Out, Err], embed func(*In) *Base) Endpoint[In, Out, Err] {
	base = base.clone()
	inputs := make([]Input[In], len(base.inputs))
	for i, bi := range base.inputs {
		inputs[i] = liftInput(bi, embed)
	}
	return Endpoint[In, Out, Err]{
		method:   base.method,
		segments: base.segments,
		inputs:   inputs,
		output:   base.output,
		errOut:   base.errOut,
		meta:     base.meta,
		errs:     base.errs,
	}
}

func liftInput[Base, In any](bi Input[Base], embed func(*In) *Base) Input[In] {
	return Input[In]{
		desc: bi.desc,
		decode: func(r *http.Request, in *In, d InputDesc) error {
			return bi.decode(r, embed(in), d)
		},
		encode: func(in *In, out *outbound, d InputDesc) error {
			return bi.encode(embed(in), out, d)
		},
	}
}

// Method returns the HTTP method.
func (e Endpoint[In, Out, Err]) Method() string { return e.method }

// Path returns the path template.
func (e Endpoint[In, Out, Err]) Path() string { return formatPath(e.segments) }

// Err reports every definition error of the endpoint, wrapped in
// ErrInvalidEndpoint. Interpreters refuse endpoints with a non-nil Err.
func (e Endpoint[In, Out, Err]) Err() error {
	errs := slices.Clone(e.errs)
	errs = append(errs, e.check()...)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %w", ErrInvalidEndpoint, e.method, e.Path(), errors.Join(errs...))
}

// check validates how inputs relate to each other and to the path.
func (e Endpoint[In, Out, Err]) check() []error {
	var errs []error

	if !slices.Contains(supportedMethods, e.method) {
		errs = append(errs, fmt.Errorf("unsupported method %q", e.method))
	}

	vars := make(map[string]bool)
	for _, s := range e.segments {
		if s.variable {
			vars[s.value] = false
		}
	}

	seen := make(map[string]bool)
	bodies := 0
	for _, in := range e.inputs {
		d := in.desc
		if d.Kind == KindBody {
			bodies++
			continue
		}
		if len(d.Fields) > 0 {
			continue
		}
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%s input without a name", d.Kind))
			continue
		}
		key := string(d.Kind) + ":" + d.Name
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate %s input %q", d.Kind, d.Name))
		}
		seen[key] = true

		if d.Security != "" && d.Kind != KindHeader && d.Kind != KindQuery && d.Kind != KindCookie {
			errs = append(errs, fmt.Errorf("security input %q must be a header, query, or cookie", d.Name))
		}
		if d.Kind != KindPath {
			continue
		}
		if d.Optional {
			errs = append(errs, fmt.Errorf("path input %q cannot be optional", d.Name))
		}
		if _, ok := vars[d.Name]; !ok {
			errs = append(errs, fmt.Errorf("path input %q has no matching path variable", d.Name))
			continue
		}
		vars[d.Name] = true
	}

	for _, s := range e.segments {
		if s.variable && !vars[s.value] {
			errs = append(errs, fmt.Errorf("path variable %q is not bound to an input", s.value))
		}
	}
	if bodies > 1 {
		errs = append(errs, errors.New("more than one body input"))
	}

	out := e.output.desc
	if out.Status < 200 || out.Status > 399 {
		errs = append(errs, fmt.Errorf("success status %d outside 200-399", out.Status))
	}
	if out.ContentType != "" {
		switch {
		case out.Status == http.StatusNoContent || out.Status == http.StatusNotModified:
			errs = append(errs, fmt.Errorf("success status %d cannot carry a body", out.Status))
		case e.method == http.MethodHead:
			errs = append(errs, errors.New("HEAD responses cannot carry a body"))
		}
	}
	if len(e.errOut.variants) == 0 {
		errs = append(errs, errors.New("no error status declared"))
	}
	for _, v := range e.errOut.variants {
		if v.Status < 400 || v.Status > 599 {
			errs = append(errs, fmt.Errorf("error status %d outside 400-599", v.Status))
		}
	}

	return errs
}

// splitInputs separates security inputs from the rest, each in
// declaration order.
func (e Endpoint[In, Out, Err]) splitInputs() (security, regular []Input[In]) {
	for _, in := range e.inputs {
		if in.desc.Security != "" {
			security = append(security, in)
			continue
		}
		regular = append(regular, in)
	}
	return security, regular
}

// Describe returns the non-generic view of the endpoint.
func (e Endpoint[In, Out, Err]) Describe() Descriptor {
	inputs := make([]InputDesc, len(e.inputs))
	for i, in := range e.inputs {
		inputs[i] = in.desc
	}
	return Descriptor{
		Method:      e.method,
		Path:        e.Path(),
		Segments:    slices.Clone(e.segments),
		Inputs:      inputs,
		Output:      e.output.desc,
		Errors:      e.errOut.Descs(),
		Summary:     e.meta.summary,
		Description: e.meta.description,
		OperationID: e.meta.operationID,
		Tags:        slices.Clone(e.meta.tags),
		Deprecated:  e.meta.deprecated,
		Err:         e.Err(),
	}
}
