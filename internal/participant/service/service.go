package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/participant/metrics"
	"registrar/internal/participant/models"
	"registrar/internal/participant/pipeline"
	"registrar/internal/participant/projection"
	"registrar/internal/participant/store/events"
	"registrar/internal/participant/store/uniqueness"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"
)

var tracer = otel.Tracer("registrar/participant")

// Service orchestrates participant registration and reads.
type Service struct {
	events   events.Store
	index    uniqueness.Index
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	metrics  *metrics.Metrics
	newID    func() string
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPipeline replaces the default validation chain.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(s *Service) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithIDGenerator overrides participant id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New constructs a Service.
func New(store events.Store, index uniqueness.Index, opts ...Option) *Service {
	s := &Service{
		events:   store,
		index:    index,
		pipeline: pipeline.New(),
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePerson validates the candidate against the uniqueness index and, if it
// passes, records a person-acquired event and claims its keys. The check, the
// append and the claim run inside the index's registration lock. No field is
// mandatory: a nil candidate passes every check and is recorded as an empty
// person.
func (s *Service) CreatePerson(ctx context.Context, candidate *models.Person) (string, error) {
	ctx, span := tracer.Start(ctx, "participant.CreatePerson")
	defer span.End()
	start := time.Now()

	var (
		id      string
		outcome pipeline.Outcome
	)
	err := s.index.Execute(ctx, func(ctx context.Context, tx uniqueness.Tx) error {
		var err error
		outcome, err = s.pipeline.Run(ctx, candidate, tx)
		if err != nil {
			return err
		}

		id = s.newID()
		var snapshot models.Person
		if candidate != nil {
			snapshot = candidate.Clone()
		}
		snapshot.IsActive = true
		if err := s.append(ctx, models.NewEvent(id, requestcontext.Now(ctx), models.PersonAcquired{Person: snapshot})); err != nil {
			return err
		}
		return tx.Add(ctx, snapshot, id)
	})
	if err != nil {
		return "", s.translateCreateError(ctx, span, err)
	}

	span.SetAttributes(
		attribute.String("participant.id", id),
		attribute.Bool("pipeline.finalized", outcome.Finalized),
	)
	if s.metrics != nil {
		s.metrics.IncrementParticipantsCreated(string(models.ParticipantTypePerson))
		if outcome.Finalized {
			s.metrics.IncrementShortCircuit()
		}
		s.metrics.ObserveCreate(start)
	}
	s.logger.InfoContext(ctx, "person created",
		"request_id", requestcontext.RequestID(ctx),
		"participant_id", id,
		"short_circuit", outcome.Finalized,
		"checked", len(outcome.Checked),
	)
	return id, nil
}

func (s *Service) translateCreateError(ctx context.Context, span trace.Span, err error) error {
	var conflict *pipeline.Conflict
	switch {
	case errors.As(err, &conflict):
		span.SetAttributes(attribute.String("conflict.dimension", string(conflict.Dimension)))
		if s.metrics != nil {
			s.metrics.IncrementConflict(string(conflict.Dimension))
		}
		s.logger.InfoContext(ctx, "person rejected",
			"request_id", requestcontext.RequestID(ctx),
			"dimension", conflict.Dimension,
			"existing_id", conflict.ExistingID,
		)
		return dErrors.Wrap(conflict, dErrors.CodeConflict, "participant already registered")
	case errors.Is(err, sentinel.ErrLocked):
		recordError(span, err)
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registration busy, retry")
	default:
		recordError(span, err)
		s.logger.ErrorContext(ctx, "failed to create person",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create person")
	}
}

// CreateOrganization records an organization-acquired event. Organizations
// are not subject to uniqueness checks.
func (s *Service) CreateOrganization(ctx context.Context, org *models.Organization) (string, error) {
	ctx, span := tracer.Start(ctx, "participant.CreateOrganization")
	defer span.End()

	if org == nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "organization is required")
	}
	if strings.TrimSpace(org.Name) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "name is required")
	}

	id := s.newID()
	snapshot := org.Clone()
	snapshot.IsActive = true
	if err := s.append(ctx, models.NewEvent(id, requestcontext.Now(ctx), models.OrganizationAcquired{Organization: snapshot})); err != nil {
		recordError(span, err)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
	}

	if s.metrics != nil {
		s.metrics.IncrementParticipantsCreated(string(models.ParticipantTypeOrganization))
	}
	s.logger.InfoContext(ctx, "organization created",
		"request_id", requestcontext.RequestID(ctx),
		"participant_id", id,
	)
	return id, nil
}

// DeactivateParticipant appends a deactivation event to an existing stream.
// Unknown ids are rejected with not_found.
func (s *Service) DeactivateParticipant(ctx context.Context, id string) (string, error) {
	ctx, span := tracer.Start(ctx, "participant.DeactivateParticipant")
	defer span.End()
	span.SetAttributes(attribute.String("participant.id", id))

	stream, err := s.loadStream(ctx, id)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	if len(stream) == 0 {
		return "", dErrors.New(dErrors.CodeNotFound, "participant not found")
	}

	if err := s.append(ctx, models.NewEvent(id, requestcontext.Now(ctx), models.ParticipantDeactivated{})); err != nil {
		recordError(span, err)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate participant")
	}
	s.logger.InfoContext(ctx, "participant deactivated",
		"request_id", requestcontext.RequestID(ctx),
		"participant_id", id,
	)
	return id, nil
}

// ModifyPerson appends one change event per supplied field that differs from
// the current state and returns the appended events. Unchanged input appends
// nothing. Changed values are not re-checked against the uniqueness index.
func (s *Service) ModifyPerson(ctx context.Context, id string, changes models.PersonChanges) ([]models.Event, error) {
	ctx, span := tracer.Start(ctx, "participant.ModifyPerson")
	defer span.End()
	span.SetAttributes(attribute.String("participant.id", id))

	current, err := s.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Type != models.ParticipantTypePerson {
		return nil, dErrors.New(dErrors.CodeValidation, "participant is not a person")
	}

	now := requestcontext.Now(ctx)
	var pending []*models.Event
	if changes.SSN != nil && *changes.SSN != current.SSN {
		pending = append(pending, models.NewEvent(id, now, models.PersonSSNChanged{SSN: *changes.SSN}))
	}
	if changes.HomePhone != nil && *changes.HomePhone != current.HomePhone {
		pending = append(pending, models.NewEvent(id, now, models.PersonHomePhoneChanged{HomePhone: *changes.HomePhone}))
	}

	appended := make([]models.Event, 0, len(pending))
	for _, e := range pending {
		if err := s.append(ctx, e); err != nil {
			recordError(span, err)
			return appended, dErrors.Wrap(err, dErrors.CodeInternal, "failed to modify person")
		}
		appended = append(appended, *e)
	}
	if len(appended) > 0 {
		s.logger.InfoContext(ctx, "person modified",
			"request_id", requestcontext.RequestID(ctx),
			"participant_id", id,
			"changes", len(appended),
		)
	}
	return appended, nil
}

// ChangeSSN records a new SSN for an existing person.
func (s *Service) ChangeSSN(ctx context.Context, id, ssn string) ([]models.Event, error) {
	return s.ModifyPerson(ctx, id, models.PersonChanges{SSN: &ssn})
}

// ChangeHomePhone records a new home phone for an existing person.
func (s *Service) ChangeHomePhone(ctx context.Context, id, homePhone string) ([]models.Event, error) {
	return s.ModifyPerson(ctx, id, models.PersonChanges{HomePhone: &homePhone})
}

// LoadEvents returns the raw stream for audit and debugging.
func (s *Service) LoadEvents(ctx context.Context, aggregateType, id string) ([]models.Event, error) {
	stream, err := s.events.Load(ctx, aggregateType, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load events")
	}
	return stream, nil
}

// GetParticipant folds the participant's stream into its current state.
func (s *Service) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	stream, err := s.loadStream(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(stream) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
	}
	p, ok := projection.New().Load(stream).Get(id)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
	}
	return p, nil
}

func (s *Service) loadStream(ctx context.Context, id string) ([]models.Event, error) {
	stream, err := s.events.Load(ctx, models.AggregateType, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}
	return stream, nil
}

func (s *Service) append(ctx context.Context, e *models.Event) error {
	start := time.Now()
	if err := s.events.Append(ctx, models.AggregateType, e); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveAppend(string(e.Kind()), start)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
