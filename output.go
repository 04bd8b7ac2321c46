package contract

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
)

// OutputDesc is the non-generic description of a success response.
type OutputDesc struct {
	Status      int
	Description string
	ContentType string
	Schema      JSONSchema
	Type        reflect.Type
}

// Output describes the success response of an endpoint: its status and,
// unless the response is empty, the codec of its body.
type Output[Out any] struct {
	desc  OutputDesc
	codec BodyCodec[Out]
}

// Respond declares a success response with a body.
func Respond[Out any](status int, codec BodyCodec[Out]) Output[Out] {
	schema, typ := bodySchema(codec)
	return Output[Out]{
		desc: OutputDesc{
			Status:      status,
			ContentType: codec.ContentType(),
			Schema:      schema,
			Type:        typ,
		},
		codec: codec,
	}
}

// Status declares a success response without a body.
func Status(status int) Output[Void] {
	return Output[Void]{desc: OutputDesc{Status: status}}
}

// Describe sets the documentation text of the response.
func (o Output[Out]) Describe(s string) Output[Out] {
	o.desc.Description = s
	return o
}

// Desc returns the output description.
func (o Output[Out]) Desc() OutputDesc { return o.desc }

// write encodes v before touching the response so an encoding failure can
// still be reported as an error.
func (o Output[Out]) write(w http.ResponseWriter, v Out) error {
	return writeBody(w, o.desc.Status, o.codec, v)
}

// read decodes a response body into Out.
func (o Output[Out]) read(body []byte) (Out, error) {
	var zero Out
	if o.codec == nil {
		return zero, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return zero, errors.New("empty response body")
	}
	return o.codec.Decode(bytes.NewReader(body))
}

// ErrorDesc is the non-generic description of one error response.
type ErrorDesc struct {
	Status      int
	Description string
	ContentType string
	Schema      JSONSchema
	Type        reflect.Type
}

// Variant maps declared error values to a status code. A nil Match
// accepts every value.
type Variant[Err any] struct {
	Status      int
	Description string
	Match       func(Err) bool
}

// When returns a Variant for errors accepted by match.
func When[Err any](status int, match func(Err) bool) Variant[Err] {
	return Variant[Err]{Status: status, Match: match}
}

// ErrorOutput describes the declared error responses of an endpoint.
type ErrorOutput[Err any] struct {
	codec    BodyCodec[Err]
	variants []Variant[Err]
}

// FailWith declares a single error status with a body codec.
func FailWith[Err any](status int, codec BodyCodec[Err]) ErrorOutput[Err] {
	return ErrorOutput[Err]{codec: codec, variants: []Variant[Err]{{Status: status}}}
}

// OneOf declares several error statuses sharing a body codec. The first
// variant whose Match accepts the error selects the status.
func OneOf[Err any](codec BodyCodec[Err], variants ...Variant[Err]) ErrorOutput[Err] {
	return ErrorOutput[Err]{codec: codec, variants: slices.Clone(variants)}
}

// defaultErrorOutput is used by endpoints that never declare an error type.
func defaultErrorOutput() ErrorOutput[Void] {
	return ErrorOutput[Void]{variants: []Variant[Void]{{Status: http.StatusBadRequest}}}
}

// Descs returns one description per variant.
func (e ErrorOutput[Err]) Descs() []ErrorDesc {
	var (
		schema JSONSchema
		typ    reflect.Type
		ct     string
	)
	if e.codec != nil {
		schema, typ = bodySchema(e.codec)
		ct = e.codec.ContentType()
	}
	descs := make([]ErrorDesc, len(e.variants))
	for i, v := range e.variants {
		descs[i] = ErrorDesc{
			Status:      v.Status,
			Description: v.Description,
			ContentType: ct,
			Schema:      schema,
			Type:        typ,
		}
	}
	return descs
}

func (e ErrorOutput[Err]) statusFor(v Err) (int, bool) {
	for _, vr := range e.variants {
		if vr.Match == nil || vr.Match(v) {
			return vr.Status, true
		}
	}
	return 0, false
}

func (e ErrorOutput[Err]) declares(status int) bool {
	return slices.ContainsFunc(e.variants, func(v Variant[Err]) bool { return v.Status == status })
}

func (e ErrorOutput[Err]) write(w http.ResponseWriter, v Err) error {
	status, ok := e.statusFor(v)
	if !ok {
		return fmt.Errorf("%w: declared error %T matches no status variant", errEncodeResponse, v)
	}
	return writeBody(w, status, e.codec, v)
}

func (e ErrorOutput[Err]) read(body []byte) (Err, error) {
	var zero Err
	if e.codec == nil || len(bytes.TrimSpace(body)) == 0 {
		return zero, nil
	}
	return e.codec.Decode(bytes.NewReader(body))
}

func (e ErrorOutput[Err]) contentType() string {
	if e.codec == nil {
		return ""
	}
	return e.codec.ContentType()
}

func (e ErrorOutput[Err]) clone() ErrorOutput[Err] {
	e.variants = slices.Clone(e.variants)
	return e
}

// errEncodeResponse marks failures that happen before anything is written,
// so the caller can still send an error response.
var errEncodeResponse = errors.New("encode response")

// writeBody encodes v with codec (or nothing when codec is nil) and writes
// the response.
func writeBody[T any](w http.ResponseWriter, status int, codec BodyCodec[T], v T) error {
	if codec == nil {
		w.WriteHeader(status)
		return nil
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, v); err != nil {
		return fmt.Errorf("%w: %w", errEncodeResponse, err)
	}

	w.Header().Set("Content-Type", codec.ContentType())
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}
