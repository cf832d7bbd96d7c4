package docs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenAPIHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	OpenAPIHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/yaml")
	assert.Contains(t, rr.Body.String(), "openapi: 3.0.3")
	assert.Contains(t, rr.Body.String(), "/webhook/aircall:")
}

func TestScalarDocsHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	ScalarDocsHandler(`/openapi.yaml?"x"`).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/docs", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	body := rr.Body.String()
	assert.Contains(t, body, "@scalar/api-reference")
	assert.Contains(t, body, `data-url="/openapi.yaml?`)
	assert.NotContains(t, body, `?"x"`)
}
