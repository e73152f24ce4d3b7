package participant

import (
	"log/slog"

	"registrar/internal/participant/handler"
	"registrar/internal/participant/service"
	"registrar/internal/participant/store/events"
	"registrar/internal/participant/store/uniqueness"
)

// Service exposes participant registration and reads.
type Service = service.Service

// Handler wires HTTP endpoints to the participant service.
type Handler = handler.Handler

// NewService constructs the participant service over an event store and a uniqueness index.
func NewService(store events.Store, index uniqueness.Index, opts ...service.Option) *Service {
	return service.New(store, index, opts...)
}

// NewHandler constructs the HTTP handler for /participants routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
