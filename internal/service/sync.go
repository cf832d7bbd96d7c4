package service

import (
	"context"
	"errors"
	"time"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ContactResolver resolve o contato de um número em um backend.
type ContactResolver interface {
	Resolve(ctx context.Context, phone string, hints domain.ContactHint) (domain.ContactRecord, error)
}

// ActivityRecorder grava a atividade de uma chamada ligada a um contato.
type ActivityRecorder interface {
	Record(ctx context.Context, contact domain.ContactRecord, event *domain.CallEvent) (domain.ActivityRecord, error)
}

// Target é um backend de destino configurado.
type Target struct {
	Name     string
	Resolver ContactResolver
	Writer   ActivityRecorder
}

// SyncService orquestra um CallEvent através de todos os backends configurados.
//
// Cada backend é independente: a falha de um nunca bloqueia os outros.
type SyncService struct {
	targets []Target
	log     *logger.Logger
	now     func() time.Time
}

func NewSyncService(targets []Target, log *logger.Logger) *SyncService {
	if log == nil {
		log = logger.Nop()
	}
	return &SyncService{
		targets: targets,
		log:     log,
		now:     time.Now,
	}
}

// Targets returns the configured backend names in order.
func (s *SyncService) Targets() []string {
	names := make([]string, 0, len(s.targets))
	for _, t := range s.targets {
		names = append(names, t.Name)
	}
	return names
}

// Process runs the event through every backend concurrently and joins the
// per-backend outcomes. It never returns an error: failures are recorded in
// the outcome map and reflected in the overall status.
func (s *SyncService) Process(ctx context.Context, event *domain.CallEvent) domain.SyncResult {
	ctx = logger.SetEventIDInContext(ctx, event.ID)
	ctx, span := telemetry.Tracer().Start(ctx, "sync.process",
		trace.WithAttributes(
			attribute.String("event.id", event.ID),
			attribute.String("event.kind", string(event.Kind)),
			attribute.String("call.direction", string(event.Direction)),
		),
	)
	defer span.End()

	result := domain.SyncResult{
		EventID:   event.ID,
		EventKind: event.Kind,
		Outcomes:  make(map[string]domain.BackendOutcome, len(s.targets)),
	}

	if err := event.Validate(); err != nil {
		// Received -> Failed: nenhum backend é chamado.
		for _, t := range s.targets {
			outcome := failed(t.Name, domain.StateReceived, err, 0)
			s.logFailure(ctx, outcome)
			result.Outcomes[t.Name] = outcome
		}
		result.Status = domain.Aggregate(result.Outcomes)
		span.SetStatus(codes.Error, err.Error())
		return result
	}

	outcomes := make([]domain.BackendOutcome, len(s.targets))
	var g errgroup.Group
	for i, t := range s.targets {
		i, t := i, t
		g.Go(func() error {
			outcomes[i] = s.syncBackend(ctx, t, event)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		result.Outcomes[o.Backend] = o
	}
	result.Status = domain.Aggregate(result.Outcomes)

	span.SetAttributes(attribute.String("sync.status", string(result.Status)))
	if result.Status == domain.OverallFailed {
		span.SetStatus(codes.Error, "all backends failed")
	}

	s.log.Info(ctx, "call event processed",
		logger.Module("sync"),
		logger.Action("process"),
		zap.String("event_kind", string(event.Kind)),
		zap.String("status", string(result.Status)),
		zap.Int("backends", len(result.Outcomes)),
	)
	return result
}

// syncBackend walks one backend through
// ContactResolving -> ContactResolved -> ActivityWriting -> Completed.
func (s *SyncService) syncBackend(ctx context.Context, t Target, event *domain.CallEvent) domain.BackendOutcome {
	ctx = logger.SetBackendInContext(ctx, t.Name)
	ctx, span := telemetry.Tracer().Start(ctx, "sync.backend",
		trace.WithAttributes(attribute.String("backend", t.Name)),
	)
	defer span.End()

	start := s.now()
	state := domain.StateContactResolving

	fail := func(err error) domain.BackendOutcome {
		outcome := failed(t.Name, state, err, s.now().Sub(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome.ErrorKind))
		s.logFailure(ctx, outcome)
		return outcome
	}

	contact, err := t.Resolver.Resolve(ctx, event.CallerNumber(), event.Contact)
	if err != nil {
		return fail(err)
	}
	state = domain.StateContactResolved
	span.AddEvent(string(state), trace.WithAttributes(attribute.String("contact.id", contact.ID)))
	s.log.Debug(ctx, "contact resolved",
		logger.Module("sync"),
		logger.Action("resolve_contact"),
		zap.String("contact_id", contact.ID),
		zap.String("state", string(state)),
	)

	// Cancelado entre as etapas: o contato existe, a atividade não é gravada.
	if err := ctx.Err(); err != nil {
		outcome := fail(&domain.BackendError{Backend: t.Name, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err})
		outcome.Contact = &contact
		return outcome
	}

	state = domain.StateActivityWriting
	activity, err := t.Writer.Record(ctx, contact, event)
	if err != nil {
		outcome := fail(err)
		outcome.Contact = &contact
		return outcome
	}

	return domain.BackendOutcome{
		Backend:  t.Name,
		State:    domain.StateCompleted,
		Contact:  &contact,
		Activity: &activity,
		Duration: s.now().Sub(start),
	}
}

func (s *SyncService) logFailure(ctx context.Context, o domain.BackendOutcome) {
	s.log.Error(ctx, "backend sync failed",
		logger.Module("sync"),
		logger.Action("process"),
		logger.Backend(o.Backend),
		zap.String("error_kind", string(o.ErrorKind)),
		zap.String("failed_at", string(o.FailedAt)),
		zap.Error(o.Err),
	)
}

func failed(backend string, at domain.SyncState, err error, d time.Duration) domain.BackendOutcome {
	return domain.BackendOutcome{
		Backend:   backend,
		State:     domain.StateFailed,
		FailedAt:  at,
		Err:       err,
		ErrorKind: domain.ClassifyError(err),
		Duration:  d,
	}
}
