package contract

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// TextCodec converts a value to and from the text carried by path, query,
// header, and cookie inputs.
type TextCodec[T any] interface {
	Encode(v T) (string, error)
	Decode(s string) (T, error)
	Schema() JSONSchema
}

// BodyCodec converts a value to and from a request or response body.
type BodyCodec[T any] interface {
	ContentType() string
	Encode(w io.Writer, v T) error
	Decode(r io.Reader) (T, error)
}

// SchemaProvider is optionally implemented by body codecs that describe
// their own payload schema instead of having it derived from the Go type.
type SchemaProvider interface {
	Schema() JSONSchema
}

type textCodec[T any] struct {
	encode func(T) (string, error)
	decode func(string) (T, error)
	schema JSONSchema
}

func (c textCodec[T]) Encode(v T) (string, error) { return c.encode(v) }
func (c textCodec[T]) Decode(s string) (T, error) { return c.decode(s) }
func (c textCodec[T]) Schema() JSONSchema         { return c.schema }

// TextFunc builds a TextCodec from a pair of functions.
func TextFunc[T any](schema JSONSchema, encode func(T) (string, error), decode func(string) (T, error)) TextCodec[T] {
	return textCodec[T]{encode: encode, decode: decode, schema: schema}
}

// Built-in text codecs.
var (
	String TextCodec[string] = textCodec[string]{
		encode: func(s string) (string, error) { return s, nil },
		decode: func(s string) (string, error) { return s, nil },
		schema: JSONSchema{Type: "string"},
	}

	Int TextCodec[int] = textCodec[int]{
		encode: func(n int) (string, error) { return strconv.Itoa(n), nil },
		decode: strconv.Atoi,
		schema: JSONSchema{Type: "integer"},
	}

	Int64 TextCodec[int64] = textCodec[int64]{
		encode: func(n int64) (string, error) { return strconv.FormatInt(n, 10), nil },
		decode: func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		schema: JSONSchema{Type: "integer", Format: "int64"},
	}

	Float64 TextCodec[float64] = textCodec[float64]{
		encode: func(f float64) (string, error) { return strconv.FormatFloat(f, 'g', -1, 64), nil },
		decode: func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
		schema: JSONSchema{Type: "number", Format: "double"},
	}

	Bool TextCodec[bool] = textCodec[bool]{
		encode: func(b bool) (string, error) { return strconv.FormatBool(b), nil },
		decode: strconv.ParseBool,
		schema: JSONSchema{Type: "boolean"},
	}

	Duration TextCodec[time.Duration] = textCodec[time.Duration]{
		encode: func(d time.Duration) (string, error) { return d.String(), nil },
		decode: time.ParseDuration,
		schema: JSONSchema{Type: "string", Format: "duration"},
	}

	Time TextCodec[time.Time] = textCodec[time.Time]{
		encode: func(t time.Time) (string, error) { return t.Format(time.RFC3339Nano), nil },
		decode: func(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) },
		schema: JSONSchema{Type: "string", Format: "date-time"},
	}

	UUID TextCodec[uuid.UUID] = textCodec[uuid.UUID]{
		encode: func(id uuid.UUID) (string, error) { return id.String(), nil },
		decode: uuid.Parse,
		schema: JSONSchema{Type: "string", Format: "uuid"},
	}
)

// Enum returns a string codec that only accepts the given values.
func Enum(values ...string) TextCodec[string] {
	check := func(s string) (string, error) {
		if !slices.Contains(values, s) {
			return "", fmt.Errorf("must be one of [%s]", strings.Join(values, ","))
		}
		return s, nil
	}
	return textCodec[string]{
		encode: check,
		decode: check,
		schema: JSONSchema{Type: "string", Enum: slices.Clone(values)},
	}
}

// jsonCodec encodes with encoding/json and validates decoded structs.
type jsonCodec[T any] struct {
	strict bool
}

// JSON returns a body codec for application/json. Decoded structs are
// checked against their `validate` struct tags.
func JSON[T any]() BodyCodec[T] { return jsonCodec[T]{} }

// StrictJSON is like JSON but rejects unknown object fields.
func StrictJSON[T any]() BodyCodec[T] { return jsonCodec[T]{strict: true} }

func (jsonCodec[T]) ContentType() string { return "application/json" }

func (jsonCodec[T]) Encode(w io.Writer, v T) error {
	return json.NewEncoder(w).Encode(v)
}

func (c jsonCodec[T]) Decode(r io.Reader) (T, error) {
	var v T
	dec := json.NewDecoder(r)
	if c.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	return v, validateValue(v)
}

// xmlCodec encodes with encoding/xml.
type xmlCodec[T any] struct{}

// XML returns a body codec for application/xml.
func XML[T any]() BodyCodec[T] { return xmlCodec[T]{} }

func (xmlCodec[T]) ContentType() string { return "application/xml" }

func (xmlCodec[T]) Encode(w io.Writer, v T) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(v)
}

func (xmlCodec[T]) Decode(r io.Reader) (T, error) {
	var v T
	if err := xml.NewDecoder(r).Decode(&v); err != nil {
		return v, err
	}
	return v, validateValue(v)
}

// yamlCodec encodes with gopkg.in/yaml.v3.
type yamlCodec[T any] struct{}

// YAML returns a body codec for application/yaml.
func YAML[T any]() BodyCodec[T] { return yamlCodec[T]{} }

func (yamlCodec[T]) ContentType() string { return "application/yaml" }

func (yamlCodec[T]) Encode(w io.Writer, v T) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (yamlCodec[T]) Decode(r io.Reader) (T, error) {
	var v T
	if err := yaml.NewDecoder(r).Decode(&v); err != nil {
		return v, err
	}
	return v, validateValue(v)
}

// textBodyCodec carries a plain string body.
type textBodyCodec struct{}

// Text returns a body codec for text/plain strings.
func Text() BodyCodec[string] { return textBodyCodec{} }

func (textBodyCodec) ContentType() string { return "text/plain; charset=utf-8" }

func (textBodyCodec) Encode(w io.Writer, v string) error {
	_, err := io.WriteString(w, v)
	return err
}

func (textBodyCodec) Decode(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	return string(b), err
}

func (textBodyCodec) Schema() JSONSchema { return JSONSchema{Type: "string"} }

// errUnsupportedMediaType is returned when a body's Content-Type does not
// match the codec declared for it.
var errUnsupportedMediaType = errors.New("unsupported media type")

// sameMediaType compares two Content-Type values ignoring parameters.
func sameMediaType(a, b string) bool {
	ma, _, err := mime.ParseMediaType(a)
	if err != nil {
		return false
	}
	mb, _, err := mime.ParseMediaType(b)
	if err != nil {
		return false
	}
	return ma == mb
}

// bodySchema returns the schema a body codec documents for T.
func bodySchema[T any](codec BodyCodec[T]) (JSONSchema, reflect.Type) {
	if sp, ok := codec.(SchemaProvider); ok {
		return sp.Schema(), nil
	}
	return JSONSchema{}, reflect.TypeFor[T]()
}

// isZero reports whether v is the zero value of its type.
func isZero[T any](v T) bool {
	return reflect.ValueOf(&v).Elem().IsZero()
}
