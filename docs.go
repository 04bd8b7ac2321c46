package contract

import (
	"bytes"
	"html/template"
	"net/http"
)

// DocsOption configures the page served by ServeDocs.
type DocsOption func(*docsPage)

// docsPage is the data rendered into docsTemplate.
type docsPage struct {
	Title   string
	SpecURL string
	Layout  string
}

// WithDocsTitle sets the page title. It defaults to the document title.
func WithDocsTitle(title string) DocsOption {
	return func(p *docsPage) { p.Title = title }
}

// WithDocsSpecURL points the page at the document URL. The default is
// "/openapi.json".
func WithDocsSpecURL(url string) DocsOption {
	return func(p *docsPage) { p.SpecURL = url }
}

// WithDocsLayout selects the Stoplight Elements layout, "sidebar" (the
// default) or "stacked".
func WithDocsLayout(layout string) DocsOption {
	return func(p *docsPage) { p.Layout = layout }
}

// ServeDocs serves a Stoplight Elements page at path that renders the
// document served with ServeSpec or ServeSpecYAML. The page is rendered
// once, at registration.
func (s *Server) ServeDocs(path string, opts ...DocsOption) error {
	page := docsPage{Title: s.info.Title, SpecURL: "/openapi.json", Layout: "sidebar"}
	for _, opt := range opts {
		opt(&page)
	}

	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, page); err != nil {
		return err
	}
	html := buf.Bytes()

	return s.handleFunc("GET "+path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(html)
	})
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
  <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
</head>
<body>
  <elements-api
    apiDescriptionUrl="{{.SpecURL}}"
    router="hash"
    layout="{{.Layout}}"
  />
</body>
</html>`))
