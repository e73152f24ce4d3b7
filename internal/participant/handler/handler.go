package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"registrar/internal/participant/models"
	"registrar/internal/participant/pipeline"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

// Service is the participant application service as seen by HTTP.
type Service interface {
	CreatePerson(ctx context.Context, candidate *models.Person) (string, error)
	CreateOrganization(ctx context.Context, org *models.Organization) (string, error)
	DeactivateParticipant(ctx context.Context, id string) (string, error)
	ModifyPerson(ctx context.Context, id string, changes models.PersonChanges) ([]models.Event, error)
	LoadEvents(ctx context.Context, aggregateType, id string) ([]models.Event, error)
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
}

// Handler serves the participant routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a participant Handler.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the participant routes on r under /participants.
func (h *Handler) Register(r chi.Router) {
	r.Route("/participants", func(r chi.Router) {
		r.Get("/", h.HandleIndex)
		r.Post("/person", h.HandleCreatePerson)
		r.Post("/organization", h.HandleCreateOrganization)
		r.Get("/person/{id}", h.HandleGetParticipant)
		r.Get("/person/events/{id}", h.HandleGetEvents)
		r.Put("/person/{id}", h.HandleModifyPerson)
		r.Delete("/{id}", h.HandleDeactivate)
	})
}

// HandleIndex handles GET /participants.
func (h *Handler) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"service": "participants"})
}

// HandleCreatePerson handles POST /participants/person.
func (h *Handler) HandleCreatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreatePersonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	id, err := h.service.CreatePerson(ctx, req.ToModel())
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	w.Header().Set("Location", path.Join("/participants/person", id))
	httputil.WriteJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// HandleCreateOrganization handles POST /participants/organization.
func (h *Handler) HandleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateOrganizationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	id, err := h.service.CreateOrganization(ctx, req.ToModel())
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	w.Header().Set("Location", path.Join("/participants/person", id))
	httputil.WriteJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// HandleGetParticipant handles GET /participants/person/{id}.
func (h *Handler) HandleGetParticipant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.service.GetParticipant(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleGetEvents handles GET /participants/person/events/{id}.
func (h *Handler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stream, err := h.service.LoadEvents(ctx, models.AggregateType, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponses(stream))
}

// HandleModifyPerson handles PUT /participants/person/{id}.
func (h *Handler) HandleModifyPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[ModifyPersonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	appended, err := h.service.ModifyPerson(ctx, id, req.ToModel())
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponses(appended))
}

// HandleDeactivate handles DELETE /participants/{id}.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.service.DeactivateParticipant(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var conflict *pipeline.Conflict
	if errors.As(err, &conflict) {
		httputil.WriteJSON(w, http.StatusConflict, toConflictResponse(conflict))
		return
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "participant request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
