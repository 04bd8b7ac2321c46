package contract_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/contract"
)

func documentJSON(t *testing.T, endpoints ...contract.Describer) map[string]any {
	t.Helper()
	spec, err := contract.Document(contract.Info{Title: "Items", Version: "1.0.0"}, endpoints...)
	require.NoError(t, err)
	data, err := spec.JSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

// dig walks nested JSON objects and arrays, failing the test on a missing
// key.
func dig(t *testing.T, v any, path ...any) any {
	t.Helper()
	for _, p := range path {
		switch key := p.(type) {
		case string:
			m, ok := v.(map[string]any)
			require.Truef(t, ok, "expected object at %q", key)
			v, ok = m[key]
			require.Truef(t, ok, "missing key %q", key)
		case int:
			s, ok := v.([]any)
			require.Truef(t, ok, "expected array at %d", key)
			require.Less(t, key, len(s))
			v = s[key]
		}
	}
	return v
}

func TestDocument_paths_and_operations(t *testing.T) {
	t.Parallel()

	doc := documentJSON(t, getItem(), postItems(), securePost(), getItem().WithMethod(http.MethodDelete))

	assert.Equal(t, "3.1.0", doc["openapi"])
	assert.Equal(t, "Items", dig(t, doc, "info", "title"))

	paths := dig(t, doc, "paths").(map[string]any)
	assert.Len(t, paths, 3)

	byID := paths["/items/{id}"].(map[string]any)
	assert.Len(t, byID, 2)
	assert.Contains(t, byID, "get")
	assert.Contains(t, byID, "delete")

	assert.Equal(t, "getItemsById", dig(t, byID, "get", "operationId"))
	assert.Equal(t, "deleteItemsById", dig(t, byID, "delete", "operationId"))
	assert.Equal(t, "postItems", dig(t, paths, "/items", "post", "operationId"))
}

func TestDocument_parameters(t *testing.T) {
	t.Parallel()

	doc := documentJSON(t, getItem())
	params := dig(t, doc, "paths", "/items/{id}", "get", "parameters").([]any)
	require.Len(t, params, 3)

	tests := map[string]struct {
		index    int
		name     string
		in       string
		required bool
		typ      string
	}{
		"path variable": {index: 0, name: "id", in: "path", required: true, typ: "string"},
		"optional query": {index: 1, name: "verbose", in: "query", typ: "boolean"},
		"header":         {index: 2, name: "X-Trace", in: "header", required: true, typ: "string"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := params[tc.index].(map[string]any)
			assert.Equal(t, tc.name, p["name"])
			assert.Equal(t, tc.in, p["in"])
			assert.Equal(t, tc.required, p["required"] == true)
			assert.Equal(t, tc.typ, dig(t, p, "schema", "type"))
		})
	}
}

func TestDocument_query_struct_fields(t *testing.T) {
	t.Parallel()

	type page struct {
		Limit  int    `schema:"limit" doc:"page size"`
		Cursor string `schema:"cursor,required"`
		Skip   string `schema:"-"`
	}
	type listIn struct{ Page page }

	e := contract.Get[listIn]().
		WithPath("/pages").
		WithInput(contract.QueryStruct(func(in *listIn) *page { return &in.Page }))

	doc := documentJSON(t, e)
	params := dig(t, doc, "paths", "/pages", "get", "parameters").([]any)

	require.Len(t, params, 2)
	assert.Equal(t, "limit", dig(t, params, 0, "name"))
	assert.Equal(t, "page size", dig(t, params, 0, "description"))
	assert.Nil(t, params[0].(map[string]any)["required"])
	assert.Equal(t, "cursor", dig(t, params, 1, "name"))
	assert.Equal(t, true, dig(t, params, 1, "required"))
}

func TestDocument_bodies_and_responses(t *testing.T) {
	t.Parallel()

	doc := documentJSON(t, getItem(), postItems())

	body := dig(t, doc, "paths", "/items", "post", "requestBody")
	assert.Equal(t, true, dig(t, body, "required"))
	assert.Equal(t, "#/components/schemas/item", dig(t, body, "content", "application/json", "schema", "$ref"))

	created := dig(t, doc, "paths", "/items", "post", "responses", "201").(map[string]any)
	assert.Equal(t, "Created", created["description"])
	assert.NotContains(t, created, "content")

	responses := dig(t, doc, "paths", "/items/{id}", "get", "responses").(map[string]any)
	assert.Equal(t, "#/components/schemas/item", dig(t, responses, "200", "content", "application/json", "schema", "$ref"))
	assert.Equal(t, "#/components/schemas/apiError", dig(t, responses, "404", "content", "application/json", "schema", "$ref"))
	assert.Equal(t, "#/components/schemas/apiError", dig(t, responses, "409", "content", "application/json", "schema", "$ref"))
	assert.Equal(t, "#/components/schemas/ProblemDetail",
		dig(t, responses, "400", "content", "application/problem+json", "schema", "$ref"))

	schemas := dig(t, doc, "components", "schemas").(map[string]any)
	assert.Contains(t, schemas, "item")
	assert.Contains(t, schemas, "apiError")
	assert.Contains(t, schemas, "ProblemDetail")
	assert.Equal(t, []any{"name"}, dig(t, schemas, "item", "required"))
}

func TestDocument_no_inputs_no_problem_response(t *testing.T) {
	t.Parallel()

	e := contract.Returns(contract.Get[contract.Void]().WithPath("/health"), contract.Respond(http.StatusOK, contract.Text()))
	doc := documentJSON(t, e)

	responses := dig(t, doc, "paths", "/health", "get", "responses").(map[string]any)
	assert.Equal(t, "string", dig(t, responses, "200", "content", "text/plain; charset=utf-8", "schema", "type"))
	assert.NotContains(t, dig(t, responses, "400").(map[string]any), "content")
}

func TestDocument_security(t *testing.T) {
	t.Parallel()

	doc := documentJSON(t, securePost())
	op := dig(t, doc, "paths", "/secure", "post")

	assert.Equal(t, []any{map[string]any{"bearer": []any{}}}, dig(t, op, "security"))
	assert.Equal(t, map[string]any{"type": "http", "scheme": "bearer"},
		dig(t, doc, "components", "securitySchemes", "bearer"))

	// Security inputs are not listed as parameters.
	_, hasParams := op.(map[string]any)["parameters"]
	assert.False(t, hasParams)

	unauthorized := dig(t, op, "responses", "401", "content").(map[string]any)
	assert.Contains(t, unauthorized, "application/json")
	assert.Contains(t, unauthorized, "application/problem+json")
}

func TestDocument_api_key_scheme(t *testing.T) {
	t.Parallel()

	type keyIn struct{ Key string }
	e := contract.Get[keyIn]().
		WithPath("/keyed").
		WithSecurityInput("apiKey", contract.Header("X-API-Key", contract.String, func(in *keyIn) *string { return &in.Key }))

	doc := documentJSON(t, e)

	assert.Equal(t, map[string]any{"type": "apiKey", "in": "header", "name": "X-Api-Key"},
		dig(t, doc, "components", "securitySchemes", "apiKey"))
}

func TestDocument_order_independent(t *testing.T) {
	t.Parallel()

	render := func(endpoints ...contract.Describer) []byte {
		spec, err := contract.Document(contract.Info{Title: "t", Version: "1"}, endpoints...)
		require.NoError(t, err)
		data, err := spec.JSON()
		require.NoError(t, err)
		return data
	}

	a := render(getItem(), postItems(), securePost())
	b := render(securePost(), getItem(), postItems())

	assert.Equal(t, string(a), string(b))
}

func TestDocument_errors(t *testing.T) {
	t.Parallel()

	renamed := contract.Fails(
		contract.Returns(
			contract.Get[getItemIn]().
				WithPath("/items/{key}").
				WithInput(contract.PathParam("key", contract.String, func(in *getItemIn) *string { return &in.ID })),
			contract.Respond(http.StatusOK, contract.JSON[item]()),
		),
		contract.FailWith(http.StatusNotFound, contract.JSON[apiError]()),
	)
	type keyIn struct{ Key string }
	otherScheme := contract.Get[keyIn]().
		WithPath("/other").
		WithSecurityInput("bearer", contract.Header("X-Key", contract.String, func(in *keyIn) *string { return &in.Key }))

	tests := map[string]struct {
		endpoints []contract.Describer
		wantErr   error
	}{
		"same route twice": {
			endpoints: []contract.Describer{getItem(), getItem()},
			wantErr:   contract.ErrDuplicateRoute,
		},
		"same route with renamed variable": {
			endpoints: []contract.Describer{getItem(), renamed},
			wantErr:   contract.ErrDuplicateRoute,
		},
		"other method with renamed variable": {
			endpoints: []contract.Describer{getItem(), renamed.WithMethod(http.MethodDelete)},
			wantErr:   contract.ErrDuplicateRoute,
		},
		"duplicate operation id": {
			endpoints: []contract.Describer{
				getItem().WithOperationID("fetch"),
				postItems().WithOperationID("fetch"),
			},
			wantErr: contract.ErrDuplicateOperation,
		},
		"invalid endpoint": {
			endpoints: []contract.Describer{getItem().WithPath("/items")},
			wantErr:   contract.ErrInvalidEndpoint,
		},
		"binding with nil handler": {
			endpoints: []contract.Describer{contract.Bind[getItemIn, item, apiError](getItem(), nil)},
			wantErr:   contract.ErrInvalidEndpoint,
		},
		"security scheme redefined": {
			endpoints: []contract.Describer{securePost(), otherScheme},
			wantErr:   contract.ErrInvalidEndpoint,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := contract.Document(contract.Info{}, tc.endpoints...)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDocument_metadata(t *testing.T) {
	t.Parallel()

	e := getItem().
		WithSummary("Get an item").
		WithDescription("Looks an item up by id.").
		WithTags("items").
		WithOperationID("fetchItem").
		WithDeprecated()

	op := dig(t, documentJSON(t, e), "paths", "/items/{id}", "get")

	assert.Equal(t, "Get an item", dig(t, op, "summary"))
	assert.Equal(t, "Looks an item up by id.", dig(t, op, "description"))
	assert.Equal(t, []any{"items"}, dig(t, op, "tags"))
	assert.Equal(t, "fetchItem", dig(t, op, "operationId"))
	assert.Equal(t, true, dig(t, op, "deprecated"))
}

func TestDocument_bindings_describe_endpoints(t *testing.T) {
	t.Parallel()

	binding := contract.Bind(getItem(), func(_ context.Context, _ *getItemIn) (contract.Outcome[item, apiError], error) {
		return contract.Ok[apiError](item{}), nil
	})

	a := documentJSON(t, binding)
	b := documentJSON(t, getItem())

	assert.Equal(t, b, a)
}

func TestOpenAPISpec_YAML(t *testing.T) {
	t.Parallel()

	spec, err := contract.Document(contract.Info{Title: "Items", Version: "2"}, getItem(), securePost())
	require.NoError(t, err)
	data, err := spec.YAML()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))

	assert.Equal(t, "3.1.0", doc["openapi"])
	assert.Equal(t, "getItemsById", dig(t, doc, "paths", "/items/{id}", "get", "operationId"))
	assert.Equal(t, "#/components/schemas/item",
		dig(t, doc, "paths", "/items/{id}", "get", "responses", "200", "content", "application/json", "schema", "$ref"))
}

func TestGenerateOperationID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		method string
		path   string
		want   string
	}{
		"root":             {method: http.MethodGet, path: "/", want: "getRoot"},
		"collection":       {method: http.MethodGet, path: "/items", want: "getItems"},
		"variable":         {method: http.MethodDelete, path: "/items/{id}", want: "deleteItemsById"},
		"nested":           {method: http.MethodPost, path: "/users/{userID}/orders", want: "postUsersByUserIDOrders"},
		"punctuated words": {method: http.MethodPut, path: "/api-keys/v2.beta", want: "putApiKeysV2Beta"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			segs, err := contract.ParsePath(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, contract.GenerateOperationID(tc.method, segs))
		})
	}
}
