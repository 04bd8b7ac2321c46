package contract

import "fmt"

// Group mounts routes under a shared literal prefix with shared middleware
// and tags. Clients of grouped endpoints include the prefix in their base
// URL.
type Group struct {
	server     *Server
	prefix     []Segment
	middleware []Middleware
	tags       []string
	err        error
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupTags adds default tags to all routes mounted on the group.
func WithGroupTags(tags ...string) GroupOption {
	return func(g *Group) {
		g.tags = append(g.tags, tags...)
	}
}

// WithGroupMiddleware adds middleware to the group.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// Group creates a route group with the given prefix, such as "/v1".
func (s *Server) Group(prefix string, opts ...GroupOption) *Group {
	g := &Group{server: s}
	segs, err := ParsePath(prefix)
	switch {
	case err != nil:
		g.err = err
	case hasVar(segs):
		g.err = fmt.Errorf("group prefix %q: path variables are not allowed", prefix)
	}
	g.prefix = segs
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Group creates a nested group under g.
func (g *Group) Group(prefix string, opts ...GroupOption) *Group {
	sub := g.server.Group(prefix)
	sub.prefix = append(append([]Segment(nil), g.prefix...), sub.prefix...)
	sub.middleware = append(sub.middleware, g.middleware...)
	sub.tags = append(sub.tags, g.tags...)
	if sub.err == nil {
		sub.err = g.err
	}
	for _, opt := range opts {
		opt(sub)
	}
	return sub
}

// Mount registers routes under the group's prefix. See Server.Mount.
func (g *Group) Mount(routes ...Route) error {
	if g.err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, g.err)
	}
	return g.server.mount(g.prefix, g.middleware, g.tags, routes)
}

func hasVar(segs []Segment) bool {
	for _, s := range segs {
		if s.variable {
			return true
		}
	}
	return false
}
