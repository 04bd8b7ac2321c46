package contract

import (
	"encoding/json"
	"io"
	"net/http"

	"gopkg.in/yaml.v3"
)

// ServeSpec registers a GET handler at the given path that serves the
// OpenAPI document as JSON. The document reflects routes mounted later.
func (s *Server) ServeSpec(pattern string) error {
	return s.handleFunc("GET "+pattern, func(w http.ResponseWriter, r *http.Request) {
		spec, err := s.Spec()
		if err != nil {
			writeUnexpected(w, r, s.logger, s.maskInternal, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(spec)
	})
}

// ServeSpecYAML registers a GET handler at the given path that serves the
// OpenAPI document as YAML.
func (s *Server) ServeSpecYAML(pattern string) error {
	return s.handleFunc("GET "+pattern, func(w http.ResponseWriter, r *http.Request) {
		spec, err := s.Spec()
		if err != nil {
			writeUnexpected(w, r, s.logger, s.maskInternal, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		//nolint:errcheck,gosec // best-effort after WriteHeader
		yaml.NewEncoder(w).Encode(spec)
	})
}

// WriteSpec writes the OpenAPI document as indented JSON to w.
func (s *Server) WriteSpec(w io.Writer) error {
	spec, err := s.Spec()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(spec)
}

// WriteSpecYAML writes the OpenAPI document as YAML to w.
func (s *Server) WriteSpecYAML(w io.Writer) error {
	spec, err := s.Spec()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(spec); err != nil {
		return err
	}
	return enc.Close()
}
