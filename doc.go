// Package contract describes HTTP APIs as typed endpoint values and
// interprets each description three ways: as server routes, as an OpenAPI
// 3.1 document, and as a client. All three read the same value, so the
// server, the docs, and the client cannot disagree about an endpoint's
// shape.
//
// An endpoint is built from explicit inputs and codecs. Builder methods
// return copies, so a base endpoint can be shared:
//
//	var base = contract.Fails(
//	    contract.Get[Auth]().
//	        WithSecurityInput("bearer", contract.BearerToken(func(a *Auth) *string { return &a.Token })),
//	    contract.FailWith(http.StatusNotFound, contract.JSON[APIError]()),
//	)
//
//	var getItem = contract.Returns(
//	    contract.Extend(base, func(in *GetItem) *Auth { return &in.Auth }).
//	        WithPath("/items/{id}").
//	        WithInput(contract.PathParam("id", contract.String, func(in *GetItem) *string { return &in.ID })),
//	    contract.Respond(http.StatusOK, contract.JSON[Item]()),
//	)
//
// Handlers never see http.ResponseWriter or *http.Request and return
// either a success or a declared failure:
//
//	type Handler[In, Out, Err any] func(ctx context.Context, in *In) (Outcome[Out, Err], error)
//
// Serving, documenting, and calling:
//
//	srv := contract.NewServer(contract.WithTitle("Items"))
//	err := srv.Mount(contract.Bind(getItem, handleGetItem))
//	spec, err := contract.Document(contract.Info{Title: "Items"}, getItem)
//	res, err := contract.Call(ctx, client, getItem, GetItem{ID: "42"})
//
// Inputs that cannot be decoded are answered with a 400 RFC 9457 problem
// details response and the handler is not called. Security inputs are
// decoded first, then the optional AuthFunc runs, then the remaining inputs
// in declaration order.
//
// Middleware uses the standard func(http.Handler) http.Handler signature,
// so the entire Go middleware ecosystem works natively.
package contract
