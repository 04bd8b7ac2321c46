package contract_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjaus/contract"
	"github.com/bjaus/contract/contracttest"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func isCode(code string) func(apiError) bool {
	return func(e apiError) bool { return e.Code == code }
}

type item struct {
	ID   string   `json:"id,omitempty"`
	Name string   `json:"name" validate:"required"`
	Tags []string `json:"tags,omitempty"`
}

type createItemIn struct {
	Body item
}

// postItems is POST /items answering 201 with no body.
func postItems() contract.Endpoint[createItemIn, contract.Void, contract.Void] {
	return contract.Returns(
		contract.Post[createItemIn]().
			WithPath("/items").
			WithInput(contract.Body(contract.JSON[item](), func(in *createItemIn) *item { return &in.Body })),
		contract.Status(http.StatusCreated),
	)
}

type getItemIn struct {
	ID      string
	Verbose bool
	Trace   string
}

// getItem is GET /items/{id} with a path, an optional query, and a
// required header input.
func getItem() contract.Endpoint[getItemIn, item, apiError] {
	return contract.Fails(
		contract.Returns(
			contract.Get[getItemIn]().
				WithPath("/items/{id}").
				WithInput(contract.PathParam("id", contract.String, func(in *getItemIn) *string { return &in.ID })).
				WithInput(contract.Query("verbose", contract.Bool, func(in *getItemIn) *bool { return &in.Verbose }).Optional()).
				WithInput(contract.Header("X-Trace", contract.String, func(in *getItemIn) *string { return &in.Trace })),
			contract.Respond(http.StatusOK, contract.JSON[item]()),
		),
		contract.OneOf(contract.JSON[apiError](),
			contract.When(http.StatusNotFound, isCode("not_found")),
			contract.When(http.StatusConflict, isCode("conflict")),
		),
	)
}

type credentials struct {
	Token string
}

type secureIn struct {
	Creds credentials
	Body  item
}

// secureBase requires a bearer token and declares apiError at 401.
var secureBase = contract.Fails(
	contract.New[credentials](http.MethodPost).
		WithSecurityInput("bearer", contract.BearerToken(func(c *credentials) *string { return &c.Token })),
	contract.FailWith(http.StatusUnauthorized, contract.JSON[apiError]()),
)

func securePost() contract.Endpoint[secureIn, item, apiError] {
	return contract.Returns(
		contract.Extend(secureBase, func(in *secureIn) *credentials { return &in.Creds }).
			WithPath("/secure").
			WithInput(contract.Body(contract.JSON[item](), func(in *secureIn) *item { return &in.Body })),
		contract.Respond(http.StatusOK, contract.JSON[item]()),
	)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve mounts routes on a fresh server and starts it.
func serve(t *testing.T, routes ...contract.Route) *contracttest.Server {
	t.Helper()
	srv := contract.NewServer(contract.WithLogger(discardLogger()))
	require.NoError(t, srv.Mount(routes...))
	return contracttest.NewServer(t, srv)
}

func echoItem(_ context.Context, in *getItemIn) (contract.Outcome[item, apiError], error) {
	return contract.Ok[apiError](item{ID: in.ID, Name: in.Trace}), nil
}
