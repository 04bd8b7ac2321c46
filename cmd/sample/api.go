package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bjaus/contract"
)

// Item is the resource served by the sample API.
type Item struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name" doc:"Display name, unique across items"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewItem is the writable part of an item.
type NewItem struct {
	Name string   `json:"name" validate:"required,max=100" doc:"Display name"`
	Tags []string `json:"tags,omitempty" validate:"max=10,dive,required"`
}

// ItemList is one page of items.
type ItemList struct {
	Items []Item `json:"items"`
	Total int    `json:"total" doc:"Number of items matching the filter"`
}

// Page selects a slice of the item list.
type Page struct {
	Limit  int    `schema:"limit" validate:"omitempty,min=1,max=100" doc:"Page size, 20 when omitted"`
	Offset int    `schema:"offset" validate:"min=0" doc:"Items to skip"`
	Tag    string `schema:"tag" doc:"Only items carrying this tag"`
}

// Error codes of APIError.
const (
	codeUnauthorized = "unauthorized"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
)

// APIError is the declared error of every endpoint.
type APIError struct {
	Code    string `json:"code" validate:"oneof=unauthorized not_found conflict"`
	Message string `json:"message"`
}

func isCode(code string) func(APIError) bool {
	return func(e APIError) bool { return e.Code == code }
}

// Auth carries the credentials shared by all inputs.
type Auth struct {
	Token string
}

type (
	CreateItem struct {
		Auth
		Body NewItem
	}

	ListItems struct {
		Auth
		Page Page
	}

	ItemByID struct {
		Auth
		ID uuid.UUID
	}

	UpdateItem struct {
		Auth
		ID   uuid.UUID
		Body NewItem
	}
)

func (in *CreateItem) auth() *Auth { return &in.Auth }
func (in *ListItems) auth() *Auth  { return &in.Auth }
func (in *ItemByID) auth() *Auth   { return &in.Auth }
func (in *UpdateItem) auth() *Auth { return &in.Auth }

// base requires a bearer token and declares APIError for every endpoint
// extended from it.
var base = contract.Fails(
	contract.New[Auth](http.MethodGet).
		WithSecurityInput("bearer", contract.BearerToken(func(a *Auth) *string { return &a.Token })).
		WithTags("items"),
	contract.OneOf(contract.JSON[APIError](),
		contract.Variant[APIError]{Status: http.StatusUnauthorized, Description: "Missing or invalid token", Match: isCode(codeUnauthorized)},
		contract.Variant[APIError]{Status: http.StatusNotFound, Description: "No such item", Match: isCode(codeNotFound)},
		contract.Variant[APIError]{Status: http.StatusConflict, Description: "Name already taken", Match: isCode(codeConflict)},
	),
)

var (
	createItem = contract.Returns(
		contract.Extend(base, (*CreateItem).auth).
			WithMethod(http.MethodPost).
			WithPath("/items").
			WithInput(contract.Body(contract.JSON[NewItem](), func(in *CreateItem) *NewItem { return &in.Body })).
			WithSummary("Create an item"),
		contract.Status(http.StatusCreated).Describe("Item created"),
	)

	listItems = contract.Returns(
		contract.Extend(base, (*ListItems).auth).
			WithPath("/items").
			WithInput(contract.QueryStruct(func(in *ListItems) *Page { return &in.Page })).
			WithSummary("List items"),
		contract.Respond(http.StatusOK, contract.JSON[ItemList]()),
	)

	getItem = contract.Returns(
		contract.Extend(base, (*ItemByID).auth).
			WithPath("/items/{id}").
			WithInput(itemID((*ItemByID).id)).
			WithSummary("Get an item"),
		contract.Respond(http.StatusOK, contract.JSON[Item]()),
	)

	updateItem = contract.Returns(
		contract.Extend(base, (*UpdateItem).auth).
			WithMethod(http.MethodPut).
			WithPath("/items/{id}").
			WithInput(itemID((*UpdateItem).id)).
			WithInput(contract.Body(contract.JSON[NewItem](), func(in *UpdateItem) *NewItem { return &in.Body })).
			WithSummary("Replace an item"),
		contract.Respond(http.StatusOK, contract.JSON[Item]()),
	)

	deleteItem = contract.Extend(base, (*ItemByID).auth).
		WithMethod(http.MethodDelete).
		WithPath("/items/{id}").
		WithInput(itemID((*ItemByID).id)).
		WithSummary("Delete an item")
)

func (in *ItemByID) id() *uuid.UUID   { return &in.ID }
func (in *UpdateItem) id() *uuid.UUID { return &in.ID }

func itemID[In any](field func(*In) *uuid.UUID) contract.Input[In] {
	return contract.PathParam("id", contract.UUID, field).Describe("Item ID")
}
