package main

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"testing"

	"aircall-sync/internal/config"
	"aircall-sync/internal/http/docs"
	"aircall-sync/internal/http/handler"
	"aircall-sync/internal/observability/logger"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPIDriftCheck(t *testing.T) {
	// Dev config so /debug routes are mounted and checked too.
	cfg := &config.Config{OTELServiceName: "test", AppEnv: "dev"}
	log, _ := logger.New("test", "error")

	r := buildRouter(RouterDeps{
		Cfg:            cfg,
		Log:            log,
		WebhookHandler: &handler.WebhookHandler{},
		HealthHandler:  &handler.HealthHandler{},
		DebugHandler:   &handler.DebugHandler{},
	})

	doc, err := openapi3.NewLoader().LoadFromData(docs.GetSpecBytes())
	require.NoError(t, err, "failed to load OpenAPI spec")

	documented := make(map[string]bool)
	for path, pathItem := range doc.Paths.Map() {
		for method := range pathItem.Operations() {
			documented[fmt.Sprintf("%s %s", strings.ToUpper(method), path)] = true
		}
	}

	implemented := make(map[string]bool)
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		m := strings.ToUpper(method)
		if m != "GET" && m != "POST" && m != "PUT" && m != "PATCH" && m != "DELETE" {
			return nil
		}
		implemented[fmt.Sprintf("%s %s", m, normalizeChiPath(route))] = true
		return nil
	}
	require.NoError(t, chi.Walk(r, walkFunc))

	var undocumented, unimplemented []string
	for route := range implemented {
		if !documented[route] {
			undocumented = append(undocumented, route)
		}
	}
	for route := range documented {
		if !implemented[route] {
			unimplemented = append(unimplemented, route)
		}
	}
	sort.Strings(undocumented)
	sort.Strings(unimplemented)

	assert.Empty(t, undocumented, "routes implemented but NOT documented in OpenAPI")
	assert.Empty(t, unimplemented, "routes documented in OpenAPI but NOT implemented")
}

// normalizeChiPath removes regex from chi parameters and trailing slashes
func normalizeChiPath(path string) string {
	re := regexp.MustCompile(`\{([^:]+):[^}]+\}`)
	normalized := re.ReplaceAllString(path, "{$1}")

	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = normalized[:len(normalized)-1]
	}
	return normalized
}
