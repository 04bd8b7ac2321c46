package contract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Server routes requests to mounted endpoint bindings. It implements
// http.Handler.
type Server struct {
	mux        *http.ServeMux
	middleware []Middleware
	routes     []Descriptor
	keys       map[string]string
	templates  map[string]string // path shape to declared template
	patterns   []string

	info    Info
	servers []ServerURL

	logger       *slog.Logger
	maskInternal bool

	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration

	mu sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTitle sets the API title used in the generated document.
func WithTitle(title string) ServerOption {
	return func(s *Server) {
		s.info.Title = title
	}
}

// WithVersion sets the API version used in the generated document.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.info.Version = version
	}
}

// WithServers sets the document's servers list.
func WithServers(servers ...ServerURL) ServerOption {
	return func(s *Server) {
		s.servers = servers
	}
}

// WithLogger sets the logger for unexpected handler errors.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaskInternalErrors hides the message of unexpected 5xx errors from
// clients. The full error is still logged.
func WithMaskInternalErrors() ServerOption {
	return func(s *Server) {
		s.maskInternal = true
	}
}

// WithReadHeaderTimeout sets http.Server.ReadHeaderTimeout for
// ListenAndServe.
func WithReadHeaderTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.readHeaderTimeout = d
	}
}

// WithShutdownTimeout bounds the graceful shutdown of ListenAndServe.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// NewServer creates a Server with the given options.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		mux:               http.NewServeMux(),
		keys:              make(map[string]string),
		templates:         make(map[string]string),
		logger:            slog.Default(),
		readHeaderTimeout: 10 * time.Second,
		shutdownTimeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Use adds middleware around every request. Middleware is applied in the
// order added.
func (s *Server) Use(mw ...Middleware) {
	s.middleware = append(s.middleware, mw...)
}

// ServeHTTP implements http.Handler. Requests no route matches get a 404
// or 405 problem response, the latter with an Allow header.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var handler http.Handler = http.HandlerFunc(s.route)
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

func (s *Server) route(w http.ResponseWriter, req *http.Request) {
	h, pattern := s.mux.Handler(req)
	if pattern != "" {
		s.mux.ServeHTTP(w, req)
		return
	}

	// The mux's own fallback writes plain text; keep its status and Allow.
	fw := &fallbackWriter{header: make(http.Header)}
	h.ServeHTTP(fw, req)
	if allow := fw.header.Get("Allow"); allow != "" {
		w.Header().Set("Allow", allow)
	}
	status := fw.status
	if status == 0 {
		status = http.StatusNotFound
	}
	writeProblem(w, newProblem(status, fmt.Sprintf("no route for %s %s", req.Method, req.URL.Path)))
}

// fallbackWriter records the status the mux picks for an unmatched request
// and drops its body.
type fallbackWriter struct {
	header http.Header
	status int
}

func (fw *fallbackWriter) Header() http.Header { return fw.header }

func (fw *fallbackWriter) WriteHeader(code int) {
	if fw.status == 0 {
		fw.status = code
	}
}

func (fw *fallbackWriter) Write(b []byte) (int, error) { return len(b), nil }

// Mount registers routes at the root. Registration is all or nothing: when
// any route is invalid or clashes with a mounted one, nothing is
// registered and the error wraps ErrInvalidEndpoint or ErrDuplicateRoute.
func (s *Server) Mount(routes ...Route) error {
	return s.mount(nil, nil, nil, routes)
}

// Routes returns the descriptors of all mounted routes, paths including
// group prefixes.
func (s *Server) Routes() []Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.routes)
}

// Spec generates the OpenAPI document of the mounted routes.
func (s *Server) Spec() (OpenAPISpec, error) {
	routes := s.Routes()
	describers := make([]Describer, len(routes))
	for i, d := range routes {
		describers[i] = d
	}
	spec, err := Document(s.info, describers...)
	if err != nil {
		return OpenAPISpec{}, err
	}
	spec.Servers = s.servers
	return spec, nil
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type pendingRoute struct {
	desc    Descriptor
	handler http.Handler
}

// mount validates every route before registering any. Group middleware is
// baked into each route handler; server middleware is applied in ServeHTTP.
func (s *Server) mount(prefix []Segment, mw []Middleware, tags []string, routes []Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]string, len(routes))
	batchTemplates := make(map[string]string, len(routes))
	pending := make([]pendingRoute, 0, len(routes))
	for _, route := range routes {
		d := route.Describe()
		if d.Err != nil {
			return d.Err
		}

		d.Segments = append(slices.Clone(prefix), d.Segments...)
		d.Path = formatPath(d.Segments)
		d.Tags = append(slices.Clone(tags), d.Tags...)

		key := d.Key()
		name := d.Method + " " + d.Path
		if prev, ok := s.keys[key]; ok {
			return fmt.Errorf("%w: %s conflicts with %s", ErrDuplicateRoute, name, prev)
		}
		if prev, ok := batch[key]; ok {
			return fmt.Errorf("%w: %s conflicts with %s", ErrDuplicateRoute, name, prev)
		}
		batch[key] = name

		shape := pathShape(d.Segments)
		prev, ok := s.templates[shape]
		if !ok {
			prev, ok = batchTemplates[shape]
		}
		if ok && prev != d.Path {
			return fmt.Errorf("%w: %s renames the path variables of %s", ErrDuplicateRoute, name, prev)
		}
		batchTemplates[shape] = d.Path

		h := route.httpHandler(handlerConfig{
			logger:       s.logger,
			maskInternal: s.maskInternal,
			pattern:      d.Path,
		})
		for i := len(mw) - 1; i >= 0; i-- {
			h = mw[i](h)
		}
		pending = append(pending, pendingRoute{desc: d, handler: h})
	}

	// ServeMux panics on patterns it cannot order, such as /a/{x}/c next to
	// /a/b/{y}. Check on a scratch mux first so a conflict leaves s.mux
	// untouched.
	scratch := http.NewServeMux()
	for _, pattern := range s.patterns {
		scratch.Handle(pattern, http.NotFoundHandler())
	}
	for _, p := range pending {
		if err := handle(scratch, p.desc.Method+" "+muxPattern(p.desc.Segments), p.handler); err != nil {
			return err
		}
	}

	for _, p := range pending {
		pattern := p.desc.Method + " " + muxPattern(p.desc.Segments)
		s.mux.Handle(pattern, p.handler)
		s.patterns = append(s.patterns, pattern)
		s.routes = append(s.routes, p.desc)
		s.keys[p.desc.Key()] = p.desc.Method + " " + p.desc.Path
		s.templates[pathShape(p.desc.Segments)] = p.desc.Path
	}
	return nil
}

// handle registers a pattern, turning a ServeMux panic into an error.
func handle(mux *http.ServeMux, pattern string, h http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrDuplicateRoute, rec)
		}
	}()
	mux.Handle(pattern, h)
	return nil
}

// handleFunc registers a framework handler such as the OpenAPI document or docs page.
func (s *Server) handleFunc(pattern string, h http.HandlerFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := handle(s.mux, pattern, h); err != nil {
		return err
	}
	s.patterns = append(s.patterns, pattern)
	return nil
}

// Handle registers a plain http.Handler outside any endpoint contract, such
// as a metrics or health check handler. It is served but not documented.
func (s *Server) Handle(pattern string, h http.Handler) error {
	return s.handleFunc(pattern, h.ServeHTTP)
}
