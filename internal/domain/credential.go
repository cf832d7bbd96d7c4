package domain

import "time"

// Credential é o bearer token de curta duração de um backend.
// Pertence exclusivamente ao seu credential.Cache.
type Credential struct {
	Token     string    `json:"accessToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidFor reports whether the credential is still usable margin after now.
func (c Credential) ValidFor(now time.Time, margin time.Duration) bool {
	if c.Token == "" {
		return false
	}
	return now.Add(margin).Before(c.ExpiresAt)
}

// Expired reports whether the credential is past its expiry instant.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
