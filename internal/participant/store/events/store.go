// Package events holds the append-only participant event store and its backends.
//
// A stream is addressed by (aggregate type, aggregate id). The aggregate type is
// lower-cased when the stream key is built, so "Participant" and "participant"
// name the same stream. Streams are created by their first append and only ever
// grow; events are never reordered or removed.
package events

import (
	"context"
	"strings"

	"registrar/internal/participant/models"
)

// Store is the event store contract shared by every backend.
type Store interface {
	// Append adds the event to the tail of its stream and sets its Sequence.
	// Duplicate or out-of-order events are not rejected.
	Append(ctx context.Context, aggregateType string, event *models.Event) error
	// Load returns the stream in append order, or an empty slice for an unknown stream.
	Load(ctx context.Context, aggregateType, aggregateID string) ([]models.Event, error)
}

func streamKey(aggregateType, aggregateID string) string {
	return strings.ToLower(aggregateType) + ":" + aggregateID
}
