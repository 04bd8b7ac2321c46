package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/bjaus/contract"
)

// principal identifies the caller once the token has been checked.
type principal string

type service struct {
	store  *Store
	token  string
	logger *slog.Logger
}

// routes binds every endpoint of the API to its handler.
func (s *service) routes() []contract.Route {
	return []contract.Route{
		contract.Bind(createItem, s.createItem).WithAuth(authorize(s, (*CreateItem).auth)),
		contract.Bind(listItems, s.listItems).WithAuth(authorize(s, (*ListItems).auth)),
		contract.Bind(getItem, s.getItem).WithAuth(authorize(s, (*ItemByID).auth)),
		contract.Bind(updateItem, s.updateItem).WithAuth(authorize(s, (*UpdateItem).auth)),
		contract.Bind(deleteItem, s.deleteItem).WithAuth(authorize(s, (*ItemByID).auth)),
	}
}

// authorize checks the bearer token before the rest of the request is read.
func authorize[In any](s *service, auth func(*In) *Auth) contract.AuthFunc[In, APIError] {
	return func(ctx context.Context, in *In) (contract.Outcome[context.Context, APIError], error) {
		if subtle.ConstantTimeCompare([]byte(auth(in).Token), []byte(s.token)) != 1 {
			return contract.Fail[context.Context](APIError{Code: codeUnauthorized, Message: "invalid token"}), nil
		}
		return contract.Ok[APIError](contract.SetValue(ctx, principal("admin"))), nil
	}
}

func (s *service) createItem(ctx context.Context, in *CreateItem) (contract.Outcome[contract.Void, APIError], error) {
	item, err := s.store.Create(in.Body)
	if err != nil {
		return failure[contract.Void](err)
	}
	who, _ := contract.GetValue[principal](ctx)
	s.logger.InfoContext(ctx, "item created", "id", item.ID, "by", who)
	return contract.Ok[APIError](contract.Void{}), nil
}

func (s *service) listItems(_ context.Context, in *ListItems) (contract.Outcome[ItemList, APIError], error) {
	limit := in.Page.Limit
	if limit == 0 {
		limit = 20
	}
	items, total := s.store.List(in.Page.Tag, in.Page.Offset, limit)
	return contract.Ok[APIError](ItemList{Items: items, Total: total}), nil
}

func (s *service) getItem(_ context.Context, in *ItemByID) (contract.Outcome[Item, APIError], error) {
	item, err := s.store.Get(in.ID)
	if err != nil {
		return failure[Item](err)
	}
	return contract.Ok[APIError](item), nil
}

func (s *service) updateItem(_ context.Context, in *UpdateItem) (contract.Outcome[Item, APIError], error) {
	item, err := s.store.Update(in.ID, in.Body)
	if err != nil {
		return failure[Item](err)
	}
	return contract.Ok[APIError](item), nil
}

func (s *service) deleteItem(ctx context.Context, in *ItemByID) (contract.Outcome[contract.Void, APIError], error) {
	if err := s.store.Delete(in.ID); err != nil {
		return failure[contract.Void](err)
	}
	s.logger.InfoContext(ctx, "item deleted", "id", in.ID)
	return contract.Ok[APIError](contract.Void{}), nil
}

// failure maps store errors to declared API errors. Anything else is
// unexpected and answered with a 500.
func failure[Out any](err error) (contract.Outcome[Out, APIError], error) {
	switch {
	case errors.Is(err, errNotFound):
		return contract.Fail[Out](APIError{Code: codeNotFound, Message: err.Error()}), nil
	case errors.Is(err, errNameTaken):
		return contract.Fail[Out](APIError{Code: codeConflict, Message: err.Error()}), nil
	default:
		return contract.Outcome[Out, APIError]{}, err
	}
}
