package oggo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aircall-sync/internal/activity"
	"aircall-sync/internal/backend"
	"aircall-sync/internal/contact"
	"aircall-sync/internal/credential"
	"aircall-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct{}

func (staticProvider) Refresh(ctx context.Context) (domain.Credential, error) {
	return domain.Credential{Token: "oggo-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type recordedCall struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]interface{}
}

// fakeOggo is an in-memory OGGO API with one optional existing contact.
type fakeOggo struct {
	t        *testing.T
	calls    []recordedCall
	existing []map[string]interface{}
}

func (f *fakeOggo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	if len(raw) > 0 {
		require.NoError(f.t, json.Unmarshal(raw, &body))
	}
	f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/contact/search":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": f.existing})
	case "/contact":
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"uuid":"contact-uuid-1","firstname":"Unknown","lastname":"Caller","type":"PERSONNE PHYSIQUE","status":"PROSPECT","phones":["612345678"]}`)
	case "/project/auto":
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"uuid":"project-uuid-1"}}`)
	case "/task":
		_, _ = io.WriteString(w, `{"id":"task-1"}`)
	case "/health":
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeOggo(t *testing.T) (*fakeOggo, *backend.Client) {
	t.Helper()
	fake := &fakeOggo{t: t}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	api := backend.NewClient(backend.Config{
		Name:        Backend,
		BaseURL:     server.URL,
		HTTPClient:  server.Client(),
		Credentials: credential.NewCache(credential.CacheConfig{Backend: Backend, Provider: staticProvider{}}),
	})
	return fake, api
}

func TestPhoneNormalizer(t *testing.T) {
	normalize := PhoneNormalizer("33")
	tests := map[string]string{
		"+33612345678":       "612345678",
		"+33 6 12 34 56 78":  "612345678",
		"0033612345678":      "612345678",
		"06 12 34 56 78":     "612345678",
		"+33 (0)6 12345678":  "612345678",
		"612345678":          "612345678",
		"+44 20 7946 0958":   "442079460958",
		"":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalize(in), in)
	}
}

func TestContactStore_SearchAndDecode(t *testing.T) {
	fake, api := newFakeOggo(t)
	fake.existing = []map[string]interface{}{{
		"uuid": "existing-1", "firstname": "Jean", "lastname": "Dupont",
		"type": TypeOrganization, "status": StatusClient, "phones": []string{"612345678"},
		"address": map[string]string{"street": "1 rue de Paris", "zipcode": "75001", "city": "Paris"},
	}}
	store := NewContactStore(api)

	records, err := store.Search(context.Background(), "612345678")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "existing-1", rec.ID)
	assert.Equal(t, domain.ClassificationOrganization, rec.Classification)
	assert.Equal(t, domain.StatusClient, rec.Status)
	assert.Equal(t, "75001", rec.Address.PostalCode)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "Bearer oggo-token", fake.calls[0].Auth)
	filters := fake.calls[0].Body["filters"].(map[string]interface{})
	assert.Equal(t, []interface{}{"612345678"}, filters["phones"])
}

func TestDecodeContacts_BareArray(t *testing.T) {
	contacts, err := decodeContacts([]byte(`[{"uuid":"a"},{"uuid":"b"}]`))
	require.NoError(t, err)
	assert.Len(t, contacts, 2)

	contacts, err = decodeContacts([]byte(` `))
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestContactStore_CreateWithoutUUID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"created"}`)
	}))
	defer server.Close()

	api := backend.NewClient(backend.Config{Name: Backend, BaseURL: server.URL, HTTPClient: server.Client(),
		Credentials: credential.NewCache(credential.CacheConfig{Backend: Backend, Provider: staticProvider{}})})

	_, err := NewContactStore(api).Create(context.Background(), domain.NewContact{Phone: "612345678"})
	require.Error(t, err)

	var creationErr *domain.ContactCreationError
	require.ErrorAs(t, err, &creationErr)
	assert.Contains(t, creationErr.Body, "created")
}

func TestFromNewContact(t *testing.T) {
	c := fromNewContact(domain.NewContact{
		Phone: "612345678", FirstName: "Unknown", LastName: "Caller", Company: "ACME",
		Classification: domain.ClassificationOrganization, Status: domain.StatusProspect,
	})
	assert.Equal(t, TypeOrganization, c.Type)
	assert.Equal(t, StatusProspect, c.Status)
	assert.Equal(t, []string{"612345678"}, c.Phones)
}

func TestActivityStore_Task(t *testing.T) {
	fake, api := newFakeOggo(t)
	store := NewActivityStore(api)

	event := &domain.CallEvent{ID: "e", Kind: domain.EventEnded, Direction: domain.DirectionOutbound, To: "+33612345678", Duration: 61, Timestamp: 1700000000, Tags: []string{"vip"}}
	payload := TaskBuilder()(domain.ContactRecord{ID: "c-1"}, event)

	id, err := store.Create(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	body := fake.calls[0].Body
	assert.Equal(t, "/task", fake.calls[0].Path)
	assert.Equal(t, "c-1", body["contact_uuid"])
	assert.Equal(t, "Appel sortant", body["subject"])
	assert.Equal(t, "2023-11-14", body["due_date"])
	assert.Contains(t, body["description"], "Tags: vip")
}

func TestActivityStore_RejectsCallLog(t *testing.T) {
	_, api := newFakeOggo(t)
	_, err := NewActivityStore(api).Create(context.Background(), domain.CallLogPayload{})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}

func TestPing(t *testing.T) {
	fake, api := newFakeOggo(t)
	require.NoError(t, Ping(context.Background(), api))
	assert.Equal(t, "", fake.calls[0].Auth)
}

// Inbound call from an unknown number: one search, one create, one project.
func TestSync_UnknownInboundCaller(t *testing.T) {
	fake, api := newFakeOggo(t)

	resolver := contact.NewResolver(Backend, NewContactStore(api), PhoneNormalizer("33"), nil)
	writer := activity.NewWriter(Backend, NewActivityStore(api), ProjectBuilder(DefaultInsuranceType), nil)

	event := &domain.CallEvent{
		ID: "evt-1", Kind: domain.EventEnded, Direction: domain.DirectionInbound,
		From: "+33612345678", To: "+33100000000", Duration: 42, Timestamp: 1700000000,
	}

	rec, err := resolver.Resolve(context.Background(), event.CallerNumber(), event.Contact)
	require.NoError(t, err)
	assert.Equal(t, "contact-uuid-1", rec.ID)

	act, err := writer.Record(context.Background(), rec, event)
	require.NoError(t, err)
	assert.Equal(t, "project-uuid-1", act.ID)

	require.Len(t, fake.calls, 3)
	assert.Equal(t, "/contact/search", fake.calls[0].Path)

	assert.Equal(t, "/contact", fake.calls[1].Path)
	assert.Equal(t, []interface{}{"612345678"}, fake.calls[1].Body["phones"])
	assert.Equal(t, "Unknown", fake.calls[1].Body["firstname"])
	assert.Equal(t, "Caller", fake.calls[1].Body["lastname"])
	assert.Equal(t, TypeIndividual, fake.calls[1].Body["type"])

	assert.Equal(t, "/project/auto", fake.calls[2].Path)
	call := fake.calls[2].Body["call"].(map[string]interface{})
	assert.Equal(t, float64(42), call["duration"])
	assert.Equal(t, "inbound", call["direction"])
	assert.Equal(t, "2023-11-14T22:13:20Z", call["started_at"])
	assert.Equal(t, "contact-uuid-1", fake.calls[2].Body["contact_uuid"])
}
