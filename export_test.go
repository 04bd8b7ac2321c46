package contract

import "reflect"

// Test-only exports for internal functions.
var (
	RouteKey            = routeKey
	FormatPath          = formatPath
	ResolvePath         = resolvePath
	GenerateOperationID = generateOperationID
	JSONFieldName       = jsonFieldName
	InlineSchema        = inlineSchema
	ValidateValue       = validateValue
	ValidationErrors    = validationErrors
	AcceptHeader        = acceptHeader
)

// TestSchemaRegistry wraps schemaRegistry for external tests.
type TestSchemaRegistry struct {
	reg  *schemaRegistry
	Defs map[string]JSONSchema
}

// NewSchemaRegistry creates a TestSchemaRegistry for testing.
func NewSchemaRegistry() *TestSchemaRegistry {
	r := newSchemaRegistry()
	return &TestSchemaRegistry{reg: r, Defs: r.defs}
}

// TypeToSchema delegates to the internal registry.
func (t *TestSchemaRegistry) TypeToSchema(typ reflect.Type) JSONSchema {
	return t.reg.typeToSchema(typ)
}
