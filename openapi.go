package contract

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI    string              `json:"openapi" yaml:"openapi"`
	Info       Info                `json:"info" yaml:"info"`
	Servers    []ServerURL         `json:"servers,omitempty" yaml:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths" yaml:"paths"`
	Components *Components         `json:"components,omitempty" yaml:"components,omitempty"`
}

// Info holds API metadata.
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ServerURL is an entry of the document's servers list.
type ServerURL struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// PathItem maps lower-case HTTP methods to operations.
type PathItem map[string]Operation

// Operation describes a single API operation on a path.
type Operation struct {
	Summary     string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
	OperationID string                `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   OperationResp         `json:"responses" yaml:"responses"`
	Security    []map[string][]string `json:"security,omitempty" yaml:"security,omitempty"`
	Deprecated  bool                  `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string     `json:"name" yaml:"name"`
	In          string     `json:"in" yaml:"in"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      JSONSchema `json:"schema" yaml:"schema"`
	Example     any        `json:"example,omitempty" yaml:"example,omitempty"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool                `json:"required" yaml:"required"`
	Content     map[string]MediaObj `json:"content" yaml:"content"`
}

// MediaObj is a media type object with an optional schema.
type MediaObj struct {
	Schema  *JSONSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
	Example any         `json:"example,omitempty" yaml:"example,omitempty"`
}

// OperationResp maps HTTP status codes to response objects.
type OperationResp map[string]ResponseObj

// ResponseObj describes a single response.
type ResponseObj struct {
	Description string              `json:"description" yaml:"description"`
	Content     map[string]MediaObj `json:"content,omitempty" yaml:"content,omitempty"`
}

// Components holds the reusable schemas and security schemes.
type Components struct {
	Schemas         map[string]JSONSchema     `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

// SecurityScheme is an OpenAPI security scheme object.
type SecurityScheme struct {
	Type         string `json:"type" yaml:"type"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	In           string `json:"in,omitempty" yaml:"in,omitempty"`
	Scheme       string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
}

const problemContentType = "application/problem+json"

// Document folds endpoint descriptions into one OpenAPI 3.1 document.
// Endpoints sharing a path template are merged into one path item. The
// result does not depend on the order of endpoints. Two endpoints with the
// same method and path (variable names ignored) fail with
// ErrDuplicateRoute, as do templates that differ only in variable names,
// which ServeMux treats as one route. Invalid endpoints fail with their own
// error.
func Document(info Info, endpoints ...Describer) (OpenAPISpec, error) {
	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info:    info,
		Paths:   make(map[string]PathItem),
	}

	reg := newSchemaRegistry()
	schemes := make(map[string]SecurityScheme)
	routes := make(map[string]string)
	templates := make(map[string]string)
	opIDs := make(map[string]string)

	// Sorting first keeps component naming independent of declaration order.
	descs := make([]Descriptor, len(endpoints))
	for i, e := range endpoints {
		descs[i] = e.Describe()
	}
	slices.SortStableFunc(descs, func(a, b Descriptor) int { return strings.Compare(a.Key(), b.Key()) })

	for _, d := range descs {
		if d.Err != nil {
			return OpenAPISpec{}, d.Err
		}

		key := d.Key()
		if prev, ok := routes[key]; ok {
			return OpenAPISpec{}, fmt.Errorf("%w: %s %s conflicts with %s", ErrDuplicateRoute, d.Method, d.Path, prev)
		}
		routes[key] = d.Method + " " + d.Path

		shape := pathShape(d.Segments)
		if prev, ok := templates[shape]; ok && prev != d.Path {
			return OpenAPISpec{}, fmt.Errorf("%w: %s %s renames the path variables of %s", ErrDuplicateRoute, d.Method, d.Path, prev)
		}
		templates[shape] = d.Path

		op, err := buildOperation(d, reg, schemes)
		if err != nil {
			return OpenAPISpec{}, err
		}
		if prev, ok := opIDs[op.OperationID]; ok {
			return OpenAPISpec{}, fmt.Errorf("%w: %q used by %s and %s %s",
				ErrDuplicateOperation, op.OperationID, prev, d.Method, d.Path)
		}
		opIDs[op.OperationID] = d.Method + " " + d.Path

		if spec.Paths[d.Path] == nil {
			spec.Paths[d.Path] = make(PathItem)
		}
		spec.Paths[d.Path][strings.ToLower(d.Method)] = op
	}

	if len(reg.defs) > 0 || len(schemes) > 0 {
		spec.Components = &Components{}
		if len(reg.defs) > 0 {
			spec.Components.Schemas = reg.defs
		}
		if len(schemes) > 0 {
			spec.Components.SecuritySchemes = schemes
		}
	}

	return spec, nil
}

// JSON renders the document as indented JSON.
func (s OpenAPISpec) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// YAML renders the document as YAML.
func (s OpenAPISpec) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// buildOperation creates an Operation from a descriptor.
func buildOperation(d Descriptor, reg *schemaRegistry, schemes map[string]SecurityScheme) (Operation, error) {
	op := Operation{
		Summary:     d.Summary,
		Description: d.Description,
		Tags:        d.Tags,
		OperationID: d.OperationID,
		Deprecated:  d.Deprecated,
		Responses:   make(OperationResp),
	}
	if op.OperationID == "" {
		op.OperationID = generateOperationID(d.Method, d.Segments)
	}

	requirement := make(map[string][]string)
	hasRegular := false
	for _, in := range d.Inputs {
		if in.Security != "" {
			scheme := securitySchemeFor(in)
			if prev, ok := schemes[in.Security]; ok && prev != scheme {
				return Operation{}, fmt.Errorf("%w: %s %s: security scheme %q redefined",
					ErrInvalidEndpoint, d.Method, d.Path, in.Security)
			}
			schemes[in.Security] = scheme
			requirement[in.Security] = []string{}
			continue
		}

		hasRegular = true
		if in.Kind == KindBody {
			op.RequestBody = &RequestBody{
				Description: in.Description,
				Required:    !in.Optional,
				Content: map[string]MediaObj{
					in.ContentType: {Schema: descSchema(reg, in.Schema, in.Type), Example: in.Example},
				},
			}
			continue
		}
		if len(in.Fields) > 0 {
			for _, f := range in.Fields {
				op.Parameters = append(op.Parameters, parameterFor(f))
			}
			continue
		}
		op.Parameters = append(op.Parameters, parameterFor(in))
	}
	if len(requirement) > 0 {
		op.Security = []map[string][]string{requirement}
	}

	out := d.Output
	resp := ResponseObj{Description: out.Description}
	if resp.Description == "" {
		resp.Description = http.StatusText(out.Status)
	}
	if out.ContentType != "" {
		resp.Content = map[string]MediaObj{out.ContentType: {Schema: descSchema(reg, out.Schema, out.Type)}}
	}
	op.Responses[strconv.Itoa(out.Status)] = resp

	for _, e := range d.Errors {
		code := strconv.Itoa(e.Status)
		if _, ok := op.Responses[code]; ok {
			continue
		}
		resp := ResponseObj{Description: e.Description}
		if resp.Description == "" {
			resp.Description = http.StatusText(e.Status)
		}
		if e.ContentType != "" {
			resp.Content = map[string]MediaObj{e.ContentType: {Schema: descSchema(reg, e.Schema, e.Type)}}
		}
		op.Responses[code] = resp
	}

	if hasRegular {
		addProblem(op.Responses, http.StatusBadRequest, reg)
	}
	if len(requirement) > 0 {
		addProblem(op.Responses, http.StatusUnauthorized, reg)
	}

	return op, nil
}

// addProblem documents the problem details body the server writes itself
// for a status, next to any declared error body at that status.
func addProblem(responses OperationResp, status int, reg *schemaRegistry) {
	schema := reg.typeToSchema(reflect.TypeFor[ProblemDetail]())
	code := strconv.Itoa(status)

	resp, ok := responses[code]
	if !ok {
		resp = ResponseObj{Description: http.StatusText(status)}
	}
	content := maps.Clone(resp.Content)
	if content == nil {
		content = make(map[string]MediaObj)
	}
	content[problemContentType] = MediaObj{Schema: &schema}
	resp.Content = content
	responses[code] = resp
}

func parameterFor(in InputDesc) Parameter {
	return Parameter{
		Name:        in.Name,
		In:          string(in.Kind),
		Description: in.Description,
		Required:    !in.Optional,
		Schema:      in.Schema,
		Example:     in.Example,
	}
}

func securitySchemeFor(in InputDesc) SecurityScheme {
	if in.SecurityScheme != nil {
		return *in.SecurityScheme
	}
	return SecurityScheme{Type: "apiKey", In: string(in.Kind), Name: in.Name}
}

// descSchema prefers the type-derived schema so named structs become
// component references.
func descSchema(reg *schemaRegistry, schema JSONSchema, t reflect.Type) *JSONSchema {
	if t != nil {
		s := reg.typeToSchema(t)
		return &s
	}
	return &schema
}

// generateOperationID derives an id such as "getItemsById" from the method
// and path.
func generateOperationID(method string, segs []Segment) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	if len(segs) == 0 {
		b.WriteString("Root")
	}
	for _, s := range segs {
		if s.variable {
			b.WriteString("By")
		}
		for word := range strings.FieldsFuncSeq(s.value, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			b.WriteString(upperFirst(word))
		}
	}
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
