package contract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/gorilla/schema"
)

var (
	queryDecoder = schema.NewDecoder()
	queryEncoder = schema.NewEncoder()
)

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// Kind is where an input is carried in a request.
type Kind string

// Input kinds.
const (
	KindPath   Kind = "path"
	KindQuery  Kind = "query"
	KindHeader Kind = "header"
	KindCookie Kind = "cookie"
	KindBody   Kind = "body"
)

// InputDesc is the non-generic description of an input shared by the
// interpreters.
type InputDesc struct {
	Kind        Kind
	Name        string
	Optional    bool
	Description string
	Example     any

	// Schema describes scalar inputs and bodies whose codec provides one.
	// Type is set for bodies whose schema is derived from the Go type.
	Schema JSONSchema
	Type   reflect.Type

	// ContentType is set for body inputs.
	ContentType string

	// Fields lists the individual parameters of a query struct input.
	Fields []InputDesc

	// Security names the security scheme for security inputs.
	Security       string
	SecurityScheme *SecurityScheme
}

// Input binds one part of an HTTP request to a field of In.
type Input[In any] struct {
	desc   InputDesc
	decode func(r *http.Request, in *In, d InputDesc) error
	encode func(in *In, out *outbound, d InputDesc) error
}

// Optional marks the input as optional. A missing optional input leaves the
// field at its zero value; the client omits zero-valued optional inputs.
func (i Input[In]) Optional() Input[In] {
	i.desc.Optional = true
	return i
}

// Describe sets the documentation text of the input.
func (i Input[In]) Describe(s string) Input[In] {
	i.desc.Description = s
	return i
}

// Example sets an example value for the documentation.
func (i Input[In]) Example(v any) Input[In] {
	i.desc.Example = v
	return i
}

// Desc returns the input description.
func (i Input[In]) Desc() InputDesc { return i.desc }

func (i Input[In]) decodeFrom(r *http.Request, in *In) error {
	return i.decode(r, in, i.desc)
}

func (i Input[In]) encodeTo(in *In, out *outbound) error {
	return i.encode(in, out, i.desc)
}

// outbound accumulates the parts of a client request.
type outbound struct {
	pathValues  map[string]string
	query       url.Values
	header      http.Header
	cookies     []*http.Cookie
	body        []byte
	contentType string
}

func newOutbound() *outbound {
	return &outbound{
		pathValues: make(map[string]string),
		query:      make(url.Values),
		header:     make(http.Header),
	}
}

// bindError returns the sentinel for failures of the given input kind.
func bindError(kind Kind) error {
	//exhaustive:ignore
	switch kind {
	case KindPath:
		return ErrBindPath
	case KindQuery:
		return ErrBindQuery
	case KindHeader:
		return ErrBindHeader
	case KindCookie:
		return ErrBindCookie
	default:
		return ErrBindBody
	}
}

var errMissing = errors.New("missing")

// scalarInput builds an input carried as a single text value.
func scalarInput[In, T any](
	kind Kind,
	name string,
	codec TextCodec[T],
	field func(*In) *T,
	lookup func(r *http.Request, name string) (string, bool),
	store func(out *outbound, name, value string),
) Input[In] {
	return Input[In]{
		desc: InputDesc{
			Kind:   kind,
			Name:   name,
			Schema: codec.Schema(),
		},
		decode: func(r *http.Request, in *In, d InputDesc) error {
			raw, ok := lookup(r, name)
			if !ok {
				if d.Optional {
					return nil
				}
				return fmt.Errorf("%w: %s: %w", bindError(kind), name, errMissing)
			}
			v, err := codec.Decode(raw)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", bindError(kind), name, err)
			}
			*field(in) = v
			return nil
		},
		encode: func(in *In, out *outbound, d InputDesc) error {
			v := *field(in)
			if d.Optional && isZero(v) {
				return nil
			}
			s, err := codec.Encode(v)
			if err != nil {
				return fmt.Errorf("%s %s: %w", kind, name, err)
			}
			store(out, name, s)
			return nil
		},
	}
}

// PathParam binds a path variable declared in the endpoint's path.
func PathParam[In, T any](name string, codec TextCodec[T], field func(*In) *T) Input[In] {
	return scalarInput(KindPath, name, codec, field,
		func(r *http.Request, name string) (string, bool) {
			v := r.PathValue(name)
			return v, v != ""
		},
		func(out *outbound, name, value string) {
			out.pathValues[name] = value
		},
	)
}

// Query binds a single query string parameter.
func Query[In, T any](name string, codec TextCodec[T], field func(*In) *T) Input[In] {
	return scalarInput(KindQuery, name, codec, field,
		func(r *http.Request, name string) (string, bool) {
			q := r.URL.Query()
			return q.Get(name), q.Has(name)
		},
		func(out *outbound, name, value string) {
			out.query.Set(name, value)
		},
	)
}

// Header binds a request header.
func Header[In, T any](name string, codec TextCodec[T], field func(*In) *T) Input[In] {
	return scalarInput(KindHeader, http.CanonicalHeaderKey(name), codec, field,
		func(r *http.Request, name string) (string, bool) {
			vals := r.Header.Values(name)
			if len(vals) == 0 {
				return "", false
			}
			return vals[0], true
		},
		func(out *outbound, name, value string) {
			out.header.Set(name, value)
		},
	)
}

// Cookie binds a request cookie.
func Cookie[In, T any](name string, codec TextCodec[T], field func(*In) *T) Input[In] {
	return scalarInput(KindCookie, name, codec, field,
		func(r *http.Request, name string) (string, bool) {
			c, err := r.Cookie(name)
			if err != nil {
				return "", false
			}
			return c.Value, true
		},
		func(out *outbound, name, value string) {
			out.cookies = append(out.cookies, &http.Cookie{Name: name, Value: value})
		},
	)
}

// BearerToken binds the token of an "Authorization: Bearer" header. Use it
// with WithSecurityInput.
func BearerToken[In any](field func(*In) *string) Input[In] {
	bearer := TextFunc(JSONSchema{Type: "string"},
		func(token string) (string, error) { return "Bearer " + token, nil },
		func(s string) (string, error) {
			scheme, token, ok := strings.Cut(s, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				return "", errors.New("expected bearer token")
			}
			return token, nil
		},
	)
	in := Header("Authorization", bearer, field)
	in.desc.SecurityScheme = &SecurityScheme{Type: "http", Scheme: "bearer"}
	return in
}

// Body binds the request body, decoded with the given codec.
func Body[In, T any](codec BodyCodec[T], field func(*In) *T) Input[In] {
	schema, typ := bodySchema(codec)
	return Input[In]{
		desc: InputDesc{
			Kind:        KindBody,
			Schema:      schema,
			Type:        typ,
			ContentType: codec.ContentType(),
		},
		decode: func(r *http.Request, in *In, d InputDesc) error {
			if ct := r.Header.Get("Content-Type"); ct != "" && !sameMediaType(ct, d.ContentType) {
				return fmt.Errorf("%w: %w: %s", ErrBindBody, errUnsupportedMediaType, ct)
			}
			var data []byte
			if r.Body != nil {
				b, err := io.ReadAll(r.Body)
				if err != nil {
					return fmt.Errorf("%w: %w", ErrBindBody, err)
				}
				data = b
			}
			if len(bytes.TrimSpace(data)) == 0 {
				if d.Optional {
					return nil
				}
				return fmt.Errorf("%w: %w", ErrBindBody, errMissing)
			}
			v, err := codec.Decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBindBody, err)
			}
			*field(in) = v
			return nil
		},
		encode: func(in *In, out *outbound, d InputDesc) error {
			v := *field(in)
			if d.Optional && isZero(v) {
				return nil
			}
			var buf bytes.Buffer
			if err := codec.Encode(&buf, v); err != nil {
				return fmt.Errorf("body: %w", err)
			}
			out.body = buf.Bytes()
			out.contentType = d.ContentType
			return nil
		},
	}
}

// QueryStruct binds the whole query string to a struct using `schema`
// struct tags. Decoded values are checked against `validate` tags.
func QueryStruct[In, T any](field func(*In) *T) Input[In] {
	return Input[In]{
		desc: InputDesc{
			Kind:   KindQuery,
			Fields: queryFields(reflect.TypeFor[T]()),
		},
		decode: func(r *http.Request, in *In, _ InputDesc) error {
			var v T
			if err := queryDecoder.Decode(&v, r.URL.Query()); err != nil {
				return fmt.Errorf("%w: %w", ErrBindQuery, err)
			}
			if err := validateValue(v); err != nil {
				return fmt.Errorf("%w: %w", ErrBindQuery, err)
			}
			*field(in) = v
			return nil
		},
		encode: func(in *In, out *outbound, _ InputDesc) error {
			vals := make(map[string][]string)
			if err := queryEncoder.Encode(*field(in), vals); err != nil {
				return fmt.Errorf("query: %w", err)
			}
			for k, vs := range vals {
				for _, v := range vs {
					out.query.Add(k, v)
				}
			}
			return nil
		},
	}
}

// queryFields describes the fields of a query struct for documentation.
func queryFields(t reflect.Type) []InputDesc {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []InputDesc
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("schema"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields = append(fields, InputDesc{
			Kind:        KindQuery,
			Name:        name,
			Optional:    !tagContains(opts, "required") && !isRequiredField(f),
			Description: f.Tag.Get("doc"),
			Schema:      inlineSchema(f.Type),
		})
	}
	return fields
}
