package contract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Segment is one element of a path template: either a literal or a named
// variable bound to a path input.
type Segment struct {
	value    string
	variable bool
}

// Lit returns a literal path segment.
func Lit(s string) Segment { return Segment{value: s} }

// Var returns a path variable segment. The name must be a Go identifier.
func Var(name string) Segment { return Segment{value: name, variable: true} }

// IsVar reports whether the segment is a variable.
func (s Segment) IsVar() bool { return s.variable }

// Name returns the literal text or the variable name.
func (s Segment) Name() string { return s.value }

// String renders the segment as it appears in a template.
func (s Segment) String() string {
	if s.variable {
		return "{" + s.value + "}"
	}
	return s.value
}

// ParsePath splits a template like "/items/{id}" into segments. Leading and
// trailing slashes are ignored; "/" yields no segments.
func ParsePath(template string) ([]Segment, error) {
	trimmed := strings.Trim(template, "/")
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, "/")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			segs = append(segs, Var(p[1:len(p)-1]))
			continue
		}
		segs = append(segs, Lit(p))
	}

	if err := checkSegments(segs); err != nil {
		return nil, fmt.Errorf("path %q: %w", template, err)
	}
	return segs, nil
}

// checkSegments validates segment text and rejects duplicate variable names.
func checkSegments(segs []Segment) error {
	seen := make(map[string]bool, len(segs))
	for _, s := range segs {
		if !s.variable {
			if s.value == "" {
				return errors.New("empty path segment")
			}
			if strings.ContainsAny(s.value, "{}/") {
				return fmt.Errorf("invalid literal segment %q", s.value)
			}
			continue
		}
		if !isIdentifier(s.value) {
			return fmt.Errorf("invalid path variable name %q", s.value)
		}
		if seen[s.value] {
			return fmt.Errorf("duplicate path variable %q", s.value)
		}
		seen[s.value] = true
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// formatPath renders segments as an OpenAPI path template.
func formatPath(segs []Segment) string {
	if len(segs) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}

// muxPattern renders segments as an http.ServeMux pattern. The root path
// is anchored so it does not act as a catch-all.
func muxPattern(segs []Segment) string {
	if len(segs) == 0 {
		return "/{$}"
	}
	return formatPath(segs)
}

// routeKey identifies a (method, path) pair with variable names erased, so
// "/items/{id}" and "/items/{key}" collide.
func routeKey(method string, segs []Segment) string {
	return method + " " + pathShape(segs)
}

// pathShape renders a template with variable names erased. Templates of
// the same shape are one route to ServeMux whatever their names.
func pathShape(segs []Segment) string {
	if len(segs) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		if s.variable {
			b.WriteString("{}")
			continue
		}
		b.WriteString(s.value)
	}
	return b.String()
}

// resolvePath substitutes escaped variable values into the template.
func resolvePath(segs []Segment, values map[string]string) (string, error) {
	if len(segs) == 0 {
		return "/", nil
	}
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		if !s.variable {
			b.WriteString(s.value)
			continue
		}
		v, ok := values[s.value]
		if !ok || v == "" {
			return "", fmt.Errorf("missing value for path variable %q", s.value)
		}
		b.WriteString(url.PathEscape(v))
	}
	return b.String(), nil
}
