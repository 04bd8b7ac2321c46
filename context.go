package contract

import (
	"context"
	"net/http"
)

type contextKey[T any] struct{}

// SetValue returns a copy of ctx carrying val, keyed by its type. AuthFunc
// implementations use it to hand the authenticated principal to handlers.
func SetValue[T any](ctx context.Context, val T) context.Context {
	return context.WithValue(ctx, contextKey[T]{}, val)
}

// GetValue retrieves a value stored with SetValue.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

// routeSlot holds the matched path template. Middleware running outside the
// mux creates it so the pattern is visible to them after the route handler
// fills it; the route handler creates it itself when no middleware did.
type routeSlot struct {
	pattern string
}

type routeSlotKey struct{}

// withRouteSlot makes sure r carries a route slot and returns it.
func withRouteSlot(r *http.Request) (*http.Request, *routeSlot) {
	if slot, ok := r.Context().Value(routeSlotKey{}).(*routeSlot); ok {
		return r, slot
	}
	slot := &routeSlot{}
	return r.WithContext(context.WithValue(r.Context(), routeSlotKey{}, slot)), slot
}

// RoutePattern returns the path template of the endpoint serving the
// request, or "" when no endpoint matched. Handlers always see it; middleware
// sees it once the inner handler has returned.
func RoutePattern(ctx context.Context) string {
	if slot, ok := ctx.Value(routeSlotKey{}).(*routeSlot); ok {
		return slot.pattern
	}
	return ""
}
