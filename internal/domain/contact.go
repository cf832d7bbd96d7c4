package domain

// Classification distingue pessoa física de pessoa jurídica.
type Classification string

const (
	ClassificationIndividual   Classification = "individual"
	ClassificationOrganization Classification = "organization"
)

// ContactStatus distingue prospect de cliente.
type ContactStatus string

const (
	StatusProspect ContactStatus = "prospect"
	StatusClient   ContactStatus = "client"
)

// Placeholders used when the webhook carries no name.
const (
	PlaceholderFirstName = "Unknown"
	PlaceholderLastName  = "Caller"
)

// Address campos postais opcionais.
type Address struct {
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ContactRecord representa um contato resolvido ou criado em um backend.
//
// ID é opaco e nunca vazio quando devolvido pelo Contact Resolver.
// Phone está no formato exigido pelo backend.
type ContactRecord struct {
	ID             string         `json:"id"`
	Backend        string         `json:"backend"`
	Phone          string         `json:"phone"`
	FirstName      string         `json:"firstName"`
	LastName       string         `json:"lastName"`
	Email          string         `json:"email,omitempty"`
	Company        string         `json:"company,omitempty"`
	Address        Address        `json:"address"`
	Classification Classification `json:"classification"`
	Status         ContactStatus  `json:"status"`
	Created        bool           `json:"created"`
}

// NewContact é o payload de criação montado pelo resolver.
type NewContact struct {
	Phone          string
	FirstName      string
	LastName       string
	Email          string
	Company        string
	Classification Classification
	Status         ContactStatus
}
