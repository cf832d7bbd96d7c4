package oggo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"aircall-sync/internal/backend"
	"aircall-sync/internal/domain"
)

// Backend is the name used in logs, metrics and the outcome journal.
const Backend = "oggo"

// Contact types and statuses as expected by the OGGO API.
const (
	TypeIndividual   = "PERSONNE PHYSIQUE"
	TypeOrganization = "PERSONNE MORALE"
	StatusProspect   = "PROSPECT"
	StatusClient     = "CLIENT"
)

// API is the request executor the OGGO stores depend on.
type API interface {
	Execute(ctx context.Context, req backend.Request) (*backend.Response, error)
}

type address struct {
	Street  string `json:"street,omitempty"`
	Zipcode string `json:"zipcode,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

type oggoContact struct {
	UUID      string   `json:"uuid"`
	Type      string   `json:"type"`
	Status    string   `json:"status"`
	FirstName string   `json:"firstname"`
	LastName  string   `json:"lastname"`
	Email     string   `json:"email,omitempty"`
	Company   string   `json:"company,omitempty"`
	Phones    []string `json:"phones"`
	Address   *address `json:"address,omitempty"`
}

type searchRequest struct {
	Filters struct {
		Phones []string `json:"phones"`
	} `json:"filters"`
}

// ContactStore implements contact.Store against the OGGO contact API.
type ContactStore struct {
	api API
}

// NewContactStore creates an OGGO contact store.
func NewContactStore(api API) *ContactStore {
	return &ContactStore{api: api}
}

// Search looks contacts up by normalized phone.
func (s *ContactStore) Search(ctx context.Context, phone string) ([]domain.ContactRecord, error) {
	var body searchRequest
	body.Filters.Phones = []string{phone}

	resp, err := s.api.Execute(ctx, backend.Request{
		Method:       http.MethodPost,
		Path:         "/contact/search",
		Body:         body,
		AuthRequired: true,
	})
	if err != nil {
		return nil, err
	}

	contacts, err := decodeContacts(resp.Body)
	if err != nil {
		return nil, &domain.BackendError{Backend: Backend, Status: resp.Status, Body: string(resp.Body), Err: err}
	}

	records := make([]domain.ContactRecord, 0, len(contacts))
	for _, c := range contacts {
		records = append(records, toRecord(c, phone))
	}
	return records, nil
}

// Create submits a new contact and returns it with its OGGO uuid.
func (s *ContactStore) Create(ctx context.Context, c domain.NewContact) (domain.ContactRecord, error) {
	payload := fromNewContact(c)

	resp, err := s.api.Execute(ctx, backend.Request{
		Method:       http.MethodPost,
		Path:         "/contact",
		Body:         payload,
		AuthRequired: true,
	})
	if err != nil {
		return domain.ContactRecord{}, err
	}

	created, err := decodeContact(resp.Body)
	if err != nil || created.UUID == "" {
		return domain.ContactRecord{}, &domain.ContactCreationError{Backend: Backend, Body: string(resp.Body)}
	}

	record := toRecord(created, c.Phone)
	// Echoed fields may be omitted by the API; keep what was sent.
	if record.FirstName == "" {
		record.FirstName = c.FirstName
	}
	if record.LastName == "" {
		record.LastName = c.LastName
	}
	return record, nil
}

func fromNewContact(c domain.NewContact) oggoContact {
	contactType := TypeIndividual
	if c.Classification == domain.ClassificationOrganization {
		contactType = TypeOrganization
	}
	status := StatusProspect
	if c.Status == domain.StatusClient {
		status = StatusClient
	}

	return oggoContact{
		Type:      contactType,
		Status:    status,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Company:   c.Company,
		Phones:    []string{c.Phone},
	}
}

func toRecord(c oggoContact, phone string) domain.ContactRecord {
	rec := domain.ContactRecord{
		ID:             c.UUID,
		Backend:        Backend,
		Phone:          phone,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		Company:        c.Company,
		Classification: domain.ClassificationIndividual,
		Status:         domain.StatusProspect,
	}
	if len(c.Phones) > 0 && c.Phones[0] != "" {
		rec.Phone = c.Phones[0]
	}
	if c.Type == TypeOrganization {
		rec.Classification = domain.ClassificationOrganization
	}
	if c.Status == StatusClient {
		rec.Status = domain.StatusClient
	}
	if c.Address != nil {
		rec.Address = domain.Address{
			Street:     c.Address.Street,
			PostalCode: c.Address.Zipcode,
			City:       c.Address.City,
			Country:    c.Address.Country,
		}
	}
	return rec
}

// decodeContacts accepts both a bare array and a {"data": [...]} envelope.
func decodeContacts(body []byte) ([]oggoContact, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []oggoContact
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode contact list: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Data []oggoContact `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode contact list: %w", err)
	}
	return envelope.Data, nil
}

// decodeContact accepts both a bare object and a {"data": {...}} envelope.
func decodeContact(body []byte) (oggoContact, error) {
	var envelope struct {
		oggoContact
		Data *oggoContact `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return oggoContact{}, fmt.Errorf("failed to decode contact: %w", err)
	}
	if envelope.Data != nil {
		return *envelope.Data, nil
	}
	return envelope.oggoContact, nil
}
