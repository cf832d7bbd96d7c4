package docs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	specBytes := GetSpecBytes()
	require.NotEmpty(t, specBytes, "embedded openapi.yaml is empty or was not loaded")

	doc, err := openapi3.NewLoader().LoadFromData(specBytes)
	require.NoError(t, err)
	return doc
}

func TestOpenAPISpecIsValid(t *testing.T) {
	require.NoError(t, loadSpec(t).Validate(context.Background()))
}

func TestWebhookSchemaAcceptsAircallPayloads(t *testing.T) {
	schema := loadSpec(t).Components.Schemas["AircallWebhook"].Value
	require.NotNil(t, schema)

	valid := []string{
		`{"id":812345,"event":"call.ended","direction":"inbound","from":"+33612345678","duration":42,"started_at":1700000000,"tags":["vip",{"name":"auto"}]}`,
		`{"id":"abc","event":"created","direction":"outbound","to":"0612345678","contact":{"name":"Jean Dupont"},"comments":[{"content":"x"}]}`,
	}
	for _, body := range valid {
		var v interface{}
		require.NoError(t, json.Unmarshal([]byte(body), &v))
		assert.NoError(t, schema.VisitJSON(v), body)
	}

	invalid := []string{
		`{"event":"call.ended"}`,
		`{"event":"call.transferred","direction":"inbound"}`,
		`{"event":"ended","direction":"sideways"}`,
		`{"event":"ended","direction":"inbound","duration":-1}`,
	}
	for _, body := range invalid {
		var v interface{}
		require.NoError(t, json.Unmarshal([]byte(body), &v))
		assert.Error(t, schema.VisitJSON(v), body)
	}
}
