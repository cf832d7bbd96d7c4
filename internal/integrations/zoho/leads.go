package zoho

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"aircall-sync/internal/backend"
	"aircall-sync/internal/domain"
)

// Backend is the name used in logs, metrics and the outcome journal.
const Backend = "zoho"

// AuthScheme is the Authorization prefix expected by the Zoho CRM API.
const AuthScheme = "Zoho-oauthtoken"

// LeadsModule is the CRM module contacts are synced to.
const LeadsModule = "Leads"

// errUndecodableBody marks a 2xx write response whose body is not a Zoho envelope.
var errUndecodableBody = errors.New("undecodable write response")

// API is the request executor the Zoho stores depend on.
type API interface {
	Execute(ctx context.Context, req backend.Request) (*backend.Response, error)
}

// PhoneNormalizer keeps digits only: +33 6 12 34 56 78 -> 33612345678.
func PhoneNormalizer(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type lead struct {
	ID          string `json:"id,omitempty"`
	FirstName   string `json:"First_Name,omitempty"`
	LastName    string `json:"Last_Name"`
	Phone       string `json:"Phone"`
	Email       string `json:"Email,omitempty"`
	Company     string `json:"Company,omitempty"`
	Street      string `json:"Street,omitempty"`
	ZipCode     string `json:"Zip_Code,omitempty"`
	City        string `json:"City,omitempty"`
	Country     string `json:"Country,omitempty"`
	LeadSource  string `json:"Lead_Source,omitempty"`
	LeadStatus  string `json:"Lead_Status,omitempty"`
	Description string `json:"Description,omitempty"`
}

type writeResult struct {
	Code    string `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details struct {
		ID string `json:"id"`
	} `json:"details"`
}

// LeadStore implements contact.Store against Zoho CRM Leads.
type LeadStore struct {
	api API
}

// NewLeadStore creates a Zoho lead store.
func NewLeadStore(api API) *LeadStore {
	return &LeadStore{api: api}
}

// Search looks leads up by phone. Zoho answers 204 when nothing matches.
func (s *LeadStore) Search(ctx context.Context, phone string) ([]domain.ContactRecord, error) {
	resp, err := s.api.Execute(ctx, backend.Request{
		Method:       http.MethodGet,
		Path:         "/crm/v2/" + LeadsModule + "/search",
		Query:        url.Values{"phone": {phone}},
		AuthRequired: true,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNoContent {
		return nil, nil
	}

	var envelope struct {
		Data []lead `json:"data"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return nil, &domain.BackendError{Backend: Backend, Status: resp.Status, Body: string(resp.Body), Err: err}
	}

	records := make([]domain.ContactRecord, 0, len(envelope.Data))
	for _, l := range envelope.Data {
		records = append(records, toRecord(l, phone))
	}
	return records, nil
}

// Create inserts a lead and returns it with its Zoho id.
func (s *LeadStore) Create(ctx context.Context, c domain.NewContact) (domain.ContactRecord, error) {
	l := lead{
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Phone:      c.Phone,
		Email:      c.Email,
		Company:    c.Company,
		LeadSource: "Aircall",
	}

	id, body, err := insert(ctx, s.api, LeadsModule, l)
	if errors.Is(err, errUndecodableBody) {
		return domain.ContactRecord{}, &domain.ContactCreationError{Backend: Backend, Body: string(body)}
	}
	if err != nil {
		return domain.ContactRecord{}, err
	}
	if id == "" {
		return domain.ContactRecord{}, &domain.ContactCreationError{Backend: Backend, Body: string(body)}
	}

	l.ID = id
	rec := toRecord(l, c.Phone)
	rec.Classification = c.Classification
	rec.Status = c.Status
	return rec, nil
}

// insert posts one record to module and returns its id, empty when Zoho
// accepted the record without reporting one, along with the raw body.
func insert(ctx context.Context, api API, module string, record interface{}) (string, []byte, error) {
	resp, err := api.Execute(ctx, backend.Request{
		Method:       http.MethodPost,
		Path:         "/crm/v2/" + module,
		Body:         map[string]interface{}{"data": []interface{}{record}},
		AuthRequired: true,
	})
	if err != nil {
		return "", nil, err
	}

	var envelope struct {
		Data []writeResult `json:"data"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return "", resp.Body, &domain.BackendError{
			Backend: Backend,
			Status:  resp.Status,
			Body:    string(resp.Body),
			Err:     fmt.Errorf("%w: %v", errUndecodableBody, err),
		}
	}
	if len(envelope.Data) == 0 {
		return "", resp.Body, nil
	}

	result := envelope.Data[0]
	if result.Code != "" && result.Code != "SUCCESS" {
		// Zoho reports per-record failures inside a 2xx multi-status body.
		return "", resp.Body, &domain.BackendError{
			Backend: Backend,
			Status:  resp.Status,
			Body:    string(resp.Body),
			Err:     errors.New(result.Code + ": " + result.Message),
		}
	}
	return result.Details.ID, resp.Body, nil
}

func toRecord(l lead, phone string) domain.ContactRecord {
	rec := domain.ContactRecord{
		ID:        l.ID,
		Backend:   Backend,
		Phone:     phone,
		FirstName: l.FirstName,
		LastName:  l.LastName,
		Email:     l.Email,
		Company:   l.Company,
		Address: domain.Address{
			Street:     l.Street,
			PostalCode: l.ZipCode,
			City:       l.City,
			Country:    l.Country,
		},
		Classification: domain.ClassificationIndividual,
		Status:         domain.StatusProspect,
	}
	if normalized := PhoneNormalizer(l.Phone); normalized != "" {
		rec.Phone = normalized
	}
	if l.LeadStatus == "Converted" {
		rec.Status = domain.StatusClient
	}
	return rec
}

// Ping checks that the CRM API accepts the current credential.
func Ping(ctx context.Context, api API) error {
	_, err := api.Execute(ctx, backend.Request{
		Method:       http.MethodGet,
		Path:         "/crm/v2/org",
		AuthRequired: true,
	})
	return err
}
