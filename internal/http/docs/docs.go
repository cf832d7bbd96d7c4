package docs

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed openapi.yaml
var openAPISpec []byte

// GetSpecBytes returns the embedded OpenAPI document.
func GetSpecBytes() []byte {
	return openAPISpec
}

// OpenAPIHandler serve o documento OpenAPI em YAML.
func OpenAPIHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openAPISpec)
	})
}

var scalarPage = template.Must(template.New("scalar").Parse(`<!doctype html>
<html>
  <head>
    <title>Aircall Sync API Reference</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>body { margin: 0; }</style>
  </head>
  <body>
    <script id="api-reference" data-url="{{.}}" data-configuration='{"theme":"default","hideClientButton":true}'></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
  </body>
</html>`))

// ScalarDocsHandler renders the Scalar API Reference (loaded from the CDN)
// pointing at specURL. The page is rendered once.
func ScalarDocsHandler(specURL string) http.Handler {
	var buf bytes.Buffer
	if err := scalarPage.Execute(&buf, specURL); err != nil {
		panic(err)
	}
	page := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	})
}
