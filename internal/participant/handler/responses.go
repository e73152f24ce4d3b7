package handler

import (
	"time"

	"registrar/internal/participant/models"
	"registrar/internal/participant/pipeline"
)

// CreatedResponse is returned by the creation endpoints.
type CreatedResponse struct {
	ID string `json:"id"`
}

// ConflictResponse extends the standard error body with the owning id.
type ConflictResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ID               string `json:"id"`
	Dimension        string `json:"dimension"`
}

// EventResponse is the audit view of one stored event.
type EventResponse struct {
	ID          string         `json:"id"`
	AggregateID string         `json:"aggregate_id"`
	Kind        models.Kind    `json:"kind"`
	Sequence    int64          `json:"sequence"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     models.Payload `json:"payload"`
}

func toEventResponses(stream []models.Event) []EventResponse {
	out := make([]EventResponse, 0, len(stream))
	for _, e := range stream {
		out = append(out, EventResponse{
			ID:          e.ID.String(),
			AggregateID: e.AggregateID,
			Kind:        e.Kind(),
			Sequence:    e.Sequence,
			OccurredAt:  e.OccurredAt,
			Payload:     e.Payload,
		})
	}
	return out
}

func toConflictResponse(c *pipeline.Conflict) ConflictResponse {
	return ConflictResponse{
		Error:            "conflict",
		ErrorDescription: c.Error(),
		ID:               c.ExistingID,
		Dimension:        string(c.Dimension),
	}
}
