package contract

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	AllowOrigins     []string // default: "*"
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// CORS returns middleware that handles Cross-Origin Resource Sharing for
// the server's endpoints. Preflight requests are answered from the route
// table: the allowed methods are those mounted for the requested path and
// the allowed headers are Content-Type plus the header inputs of those
// endpoints. Preflights for unknown paths fall through to the mux.
func (s *Server) CORS(cfg CORSConfig) Middleware {
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed, ok := allowOrigin(cfg.AllowOrigins, origin)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Add("Vary", "Origin")
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if expose != "" {
				h.Set("Access-Control-Expose-Headers", expose)
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			methods, headers := s.preflight(r.URL.Path)
			if len(methods) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
			h.Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func allowOrigin(origins []string, origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	if slices.Contains(origins, "*") {
		return "*", true
	}
	if slices.Contains(origins, origin) {
		return origin, true
	}
	return "", false
}

// preflight collects the methods and request headers of the endpoints
// mounted at path, both sorted.
func (s *Server) preflight(path string) (methods, headers []string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		parts = nil
	}

	headers = []string{"Content-Type"}
	for _, d := range s.Routes() {
		if !matchSegments(d.Segments, parts) {
			continue
		}
		if !slices.Contains(methods, d.Method) {
			methods = append(methods, d.Method)
		}
		for _, in := range d.Inputs {
			if in.Kind == KindHeader && !slices.Contains(headers, in.Name) {
				headers = append(headers, in.Name)
			}
		}
	}
	slices.Sort(methods)
	slices.Sort(headers)
	return methods, headers
}

func matchSegments(segs []Segment, parts []string) bool {
	if len(segs) != len(parts) {
		return false
	}
	for i, s := range segs {
		if parts[i] == "" || (!s.variable && s.value != parts[i]) {
			return false
		}
	}
	return true
}
