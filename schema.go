package contract

import (
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
type JSONSchema struct {
	Type        string                `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string                `json:"format,omitempty" yaml:"format,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty" yaml:"items,omitempty"`
	Required    []string              `json:"required,omitempty" yaml:"required,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string              `json:"enum,omitempty" yaml:"enum,omitempty"`
	Example     any                   `json:"example,omitempty" yaml:"example,omitempty"`
	Ref         string                `json:"$ref,omitempty" yaml:"$ref,omitempty"`

	// AdditionalProperties can be true (any) or a schema.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
}

// schemaRegistry converts Go types to schemas. Named struct types are
// collected as components and referenced with $ref unless inline is set.
type schemaRegistry struct {
	inline bool
	defs   map[string]JSONSchema
	names  map[reflect.Type]string
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		defs:  make(map[string]JSONSchema),
		names: make(map[reflect.Type]string),
	}
}

// inlineSchema converts a type without collecting components.
func inlineSchema(t reflect.Type) JSONSchema {
	r := newSchemaRegistry()
	r.inline = true
	return r.typeToSchema(t)
}

// typeToSchema converts a reflect.Type to a JSONSchema.
func (r *schemaRegistry) typeToSchema(t reflect.Type) JSONSchema {
	if t.Kind() == reflect.Pointer {
		return r.typeToSchema(t.Elem())
	}

	switch t {
	case reflect.TypeFor[time.Time]():
		return JSONSchema{Type: "string", Format: "date-time"}
	case reflect.TypeFor[time.Duration]():
		return JSONSchema{Type: "string", Format: "duration"}
	case reflect.TypeFor[uuid.UUID]():
		return JSONSchema{Type: "string", Format: "uuid"}
	case reflect.TypeFor[Void]():
		return JSONSchema{}
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return JSONSchema{Type: "string"}
	case reflect.Bool:
		return JSONSchema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return JSONSchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return JSONSchema{Type: "number"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", Format: "byte"}
		}
		items := r.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Array:
		items := r.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		valSchema := r.typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &valSchema}
	case reflect.Struct:
		if r.inline || t.Name() == "" {
			return r.structToSchema(t)
		}
		return JSONSchema{Ref: "#/components/schemas/" + r.register(t)}
	default:
		return JSONSchema{}
	}
}

// register stores the schema of a named struct and returns its component name.
func (r *schemaRegistry) register(t reflect.Type) string {
	if name, ok := r.names[t]; ok {
		return name
	}

	name := schemaName(t.Name())
	if _, taken := r.defs[name]; taken {
		name = schemaName(path.Base(t.PkgPath()) + "." + t.Name())
	}

	// Reserve the name first so recursive types terminate.
	r.names[t] = name
	r.defs[name] = JSONSchema{}
	r.defs[name] = r.structToSchema(t)
	return name
}

// schemaName sanitizes a Go type name (including generic instantiations)
// into a component key.
func schemaName(s string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			return c
		default:
			return '_'
		}
	}, s)
}

// structToSchema converts a struct type to a JSONSchema with properties.
func (r *schemaRegistry) structToSchema(t reflect.Type) JSONSchema {
	schema := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		prop := r.typeToSchema(f.Type)

		if doc := f.Tag.Get("doc"); doc != "" {
			prop.Description = doc
		}
		if vals := oneOfValues(f); len(vals) > 0 && prop.Type == "string" {
			prop.Enum = vals
		}

		schema.Properties[name] = prop

		if isRequiredField(f) {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// isRequiredField reports whether a struct field is validated as required.
func isRequiredField(f reflect.StructField) bool {
	return tagContains(f.Tag.Get("validate"), "required")
}

// oneOfValues returns the values of a `validate:"oneof=a b"` rule.
func oneOfValues(f reflect.StructField) []string {
	for rule := range strings.SplitSeq(f.Tag.Get("validate"), ",") {
		if vals, ok := strings.CutPrefix(rule, "oneof="); ok {
			return strings.Fields(vals)
		}
	}
	return nil
}

// tagContains reports whether a comma-separated list of options
// contains a particular option.
func tagContains(opts string, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}
