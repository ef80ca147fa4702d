package handlers

import (
	_ "embed"
	"html/template"
	"net/http"
	"path"
)

//go:embed openapi.json
var openAPIDocument []byte

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>body { margin: 0; }</style>
</head>
<body>
<redoc spec-url="{{.DocumentURL}}"></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
</body>
</html>
`))

// OpenAPIJSON serves the embedded API description.
func (a *App) OpenAPIJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(openAPIDocument)
}

// OpenAPIDocs renders a Redoc page that loads openapi.json from the same
// directory as the docs route, so it keeps working under a path prefix.
func (a *App) OpenAPIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := docsPage.Execute(w, struct{ Title, DocumentURL string }{
		Title:       "Crowdfund API",
		DocumentURL: path.Join(path.Dir(r.URL.Path), "openapi.json"),
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("render docs page")
	}
}
