package contract_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/contract"
)

func TestTypeToSchema_scalars(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		typ  reflect.Type
		want contract.JSONSchema
	}{
		"string":   {typ: reflect.TypeFor[string](), want: contract.JSONSchema{Type: "string"}},
		"int":      {typ: reflect.TypeFor[int](), want: contract.JSONSchema{Type: "integer"}},
		"uint8":    {typ: reflect.TypeFor[uint8](), want: contract.JSONSchema{Type: "integer"}},
		"float":    {typ: reflect.TypeFor[float32](), want: contract.JSONSchema{Type: "number"}},
		"bool":     {typ: reflect.TypeFor[bool](), want: contract.JSONSchema{Type: "boolean"}},
		"pointer":  {typ: reflect.TypeFor[*string](), want: contract.JSONSchema{Type: "string"}},
		"bytes":    {typ: reflect.TypeFor[[]byte](), want: contract.JSONSchema{Type: "string", Format: "byte"}},
		"time":     {typ: reflect.TypeFor[time.Time](), want: contract.JSONSchema{Type: "string", Format: "date-time"}},
		"duration": {typ: reflect.TypeFor[time.Duration](), want: contract.JSONSchema{Type: "string", Format: "duration"}},
		"uuid":     {typ: reflect.TypeFor[uuid.UUID](), want: contract.JSONSchema{Type: "string", Format: "uuid"}},
		"slice": {
			typ:  reflect.TypeFor[[]int](),
			want: contract.JSONSchema{Type: "array", Items: &contract.JSONSchema{Type: "integer"}},
		},
		"string map": {
			typ:  reflect.TypeFor[map[string]bool](),
			want: contract.JSONSchema{Type: "object", AdditionalProperties: &contract.JSONSchema{Type: "boolean"}},
		},
		"int map": {
			typ:  reflect.TypeFor[map[int]string](),
			want: contract.JSONSchema{Type: "object"},
		},
		"void": {typ: reflect.TypeFor[contract.Void](), want: contract.JSONSchema{}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg := contract.NewSchemaRegistry()
			assert.Equal(t, tc.want, reg.TypeToSchema(tc.typ))
			assert.Empty(t, reg.Defs)
		})
	}
}

type order struct {
	ID       uuid.UUID         `json:"id" validate:"required"`
	Status   string            `json:"status" validate:"required,oneof=open closed"`
	Note     string            `json:"note,omitempty" doc:"Free text"`
	Lines    []orderLine       `json:"lines"`
	Labels   map[string]string `json:"labels,omitempty"`
	internal string
	Skipped  string `json:"-"`
}

type orderLine struct {
	SKU string `json:"sku" validate:"required"`
	Qty int    `json:"qty"`
}

type category struct {
	Name     string     `json:"name"`
	Children []category `json:"children,omitempty"`
}

func TestTypeToSchema_structs(t *testing.T) {
	t.Parallel()

	reg := contract.NewSchemaRegistry()
	got := reg.TypeToSchema(reflect.TypeFor[order]())

	assert.Equal(t, "#/components/schemas/order", got.Ref)
	require.Contains(t, reg.Defs, "order")
	require.Contains(t, reg.Defs, "orderLine")

	s := reg.Defs["order"]
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"id", "status"}, s.Required)
	assert.Equal(t, []string{"open", "closed"}, s.Properties["status"].Enum)
	assert.Equal(t, "Free text", s.Properties["note"].Description)
	assert.Equal(t, "#/components/schemas/orderLine", s.Properties["lines"].Items.Ref)
	assert.NotContains(t, s.Properties, "internal")
	assert.NotContains(t, s.Properties, "Skipped")
	assert.NotContains(t, s.Properties, "-")
}

func TestTypeToSchema_recursive(t *testing.T) {
	t.Parallel()

	reg := contract.NewSchemaRegistry()
	got := reg.TypeToSchema(reflect.TypeFor[category]())

	assert.Equal(t, "#/components/schemas/category", got.Ref)
	assert.Equal(t, "#/components/schemas/category", reg.Defs["category"].Properties["children"].Items.Ref)
}

func TestTypeToSchema_anonymous_struct(t *testing.T) {
	t.Parallel()

	reg := contract.NewSchemaRegistry()
	got := reg.TypeToSchema(reflect.TypeFor[struct {
		A string `json:"a"`
	}]())

	assert.Equal(t, "object", got.Type)
	assert.Equal(t, contract.JSONSchema{Type: "string"}, got.Properties["a"])
	assert.Empty(t, reg.Defs)
}

type page[T any] struct {
	Items []T `json:"items"`
}

func TestTypeToSchema_generic_name(t *testing.T) {
	t.Parallel()

	reg := contract.NewSchemaRegistry()
	got := reg.TypeToSchema(reflect.TypeFor[page[orderLine]]())

	assert.NotContains(t, got.Ref, "[")
	assert.Len(t, reg.Defs, 2)
}

func TestInlineSchema(t *testing.T) {
	t.Parallel()

	got := contract.InlineSchema(reflect.TypeFor[orderLine]())

	assert.Empty(t, got.Ref)
	assert.Equal(t, "object", got.Type)
	assert.Equal(t, []string{"sku"}, got.Required)
}

func TestJSONFieldName(t *testing.T) {
	t.Parallel()

	typ := reflect.TypeFor[struct {
		Plain   string
		Renamed string `json:"renamed"`
		Options string `json:",omitempty"`
		Hidden  string `json:"-"`
	}]()

	tests := map[string]string{
		"Plain":   "Plain",
		"Renamed": "renamed",
		"Options": "Options",
		"Hidden":  "-",
	}

	for field, want := range tests {
		t.Run(field, func(t *testing.T) {
			t.Parallel()

			f, ok := typ.FieldByName(field)
			require.True(t, ok)
			assert.Equal(t, want, contract.JSONFieldName(f))
		})
	}
}
