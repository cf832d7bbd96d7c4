package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/observability/logger"

	"go.uber.org/zap"
)

// Store is the contact capability of one backend.
//
// Search returns every contact matching the normalized phone, in backend order.
// An empty slice means "not found"; an error means the search itself failed.
type Store interface {
	Search(ctx context.Context, phone string) ([]domain.ContactRecord, error)
	Create(ctx context.Context, c domain.NewContact) (domain.ContactRecord, error)
}

// Normalizer converts a raw phone number into the backend's format.
type Normalizer func(raw string) string

// Resolver finds or creates the contact for a phone number in one backend.
type Resolver struct {
	backend   string
	store     Store
	normalize Normalizer
	log       *logger.Logger
}

// NewResolver creates a resolver for backend.
func NewResolver(backend string, store Store, normalize Normalizer, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		backend:   backend,
		store:     store,
		normalize: normalize,
		log:       log,
	}
}

// Resolve returns the first contact matching phone, creating one when none exists.
//
// A search failure is returned as is and never followed by a create.
// The returned record always has a non-empty ID.
func (r *Resolver) Resolve(ctx context.Context, phone string, hints domain.ContactHint) (domain.ContactRecord, error) {
	if strings.TrimSpace(phone) == "" {
		return domain.ContactRecord{}, domain.NewValidationError("phone", "phone number is required")
	}

	normalized := r.normalize(phone)
	if normalized == "" {
		return domain.ContactRecord{}, domain.NewValidationError("phone", "phone number has no digits")
	}

	matches, err := r.store.Search(ctx, normalized)
	if err != nil {
		return domain.ContactRecord{}, fmt.Errorf("contact search failed: %w", err)
	}

	if len(matches) > 0 {
		found := matches[0]
		if found.ID == "" {
			return domain.ContactRecord{}, &domain.BackendError{
				Backend: r.backend,
				Err:     errors.New("contact search returned a match without identifier"),
			}
		}
		found.Backend = r.backend
		found.Created = false

		r.log.Info(ctx, "contact found",
			logger.Module("contact"),
			logger.Action("resolve"),
			logger.Backend(r.backend),
			zap.String("contact_id", found.ID),
			zap.Int("matches", len(matches)),
		)
		return found, nil
	}

	created, err := r.store.Create(ctx, NewContactFromHints(normalized, hints))
	if err != nil {
		return domain.ContactRecord{}, fmt.Errorf("contact creation failed: %w", err)
	}
	if created.ID == "" {
		return domain.ContactRecord{}, &domain.ContactCreationError{Backend: r.backend}
	}
	created.Backend = r.backend
	created.Created = true

	r.log.Info(ctx, "contact created",
		logger.Module("contact"),
		logger.Action("resolve"),
		logger.Backend(r.backend),
		zap.String("contact_id", created.ID),
	)
	return created, nil
}

// NewContactFromHints builds the creation payload for an unknown number.
// Missing names fall back to the Unknown/Caller placeholders.
func NewContactFromHints(phone string, hints domain.ContactHint) domain.NewContact {
	first := hints.FirstName()
	last := hints.LastName()

	classification := domain.ClassificationIndividual
	company := strings.TrimSpace(hints.Company)
	if company != "" && first == "" {
		classification = domain.ClassificationOrganization
	}

	if first == "" {
		first = domain.PlaceholderFirstName
	}
	if last == "" {
		last = domain.PlaceholderLastName
	}

	return domain.NewContact{
		Phone:          phone,
		FirstName:      first,
		LastName:       last,
		Email:          strings.TrimSpace(hints.Email),
		Company:        company,
		Classification: classification,
		Status:         domain.StatusProspect,
	}
}
