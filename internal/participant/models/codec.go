package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownKind is returned when decoding a payload whose kind is not registered.
var ErrUnknownKind = errors.New("unknown event kind")

// EncodePayload serializes a payload body. The kind travels separately.
func EncodePayload(p Payload) (Kind, []byte, error) {
	if p == nil {
		return "", nil, errors.New("encode payload: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return p.Kind(), data, nil
}

// DecodePayload rebuilds a payload from its kind and body.
func DecodePayload(kind Kind, data []byte) (Payload, error) {
	switch kind {
	case KindPersonAcquired:
		return decodeInto[PersonAcquired](kind, data)
	case KindOrganizationAcquired:
		return decodeInto[OrganizationAcquired](kind, data)
	case KindParticipantDeactivated:
		return ParticipantDeactivated{}, nil
	case KindPersonSSNChanged:
		return decodeInto[PersonSSNChanged](kind, data)
	case KindPersonHomePhoneChanged:
		return decodeInto[PersonHomePhoneChanged](kind, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeInto[T Payload](kind Kind, data []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// envelope is the JSON form of a whole event, used by the event feed.
type envelope struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	Kind        Kind            `json:"kind"`
	Sequence    int64           `json:"sequence"`
	OccurredAt  string          `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// MarshalEvent encodes a whole event as a self-describing JSON document.
func MarshalEvent(e Event) ([]byte, error) {
	kind, body, err := EncodePayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		ID:          e.ID.String(),
		AggregateID: e.AggregateID,
		Kind:        kind,
		Sequence:    e.Sequence,
		OccurredAt:  e.OccurredAt.UTC().Format(time.RFC3339Nano),
		Payload:     body,
	})
}

// UnmarshalEvent is the inverse of MarshalEvent.
func UnmarshalEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event envelope: %w", err)
	}
	eventID, err := uuid.Parse(env.ID)
	if err != nil {
		return Event{}, fmt.Errorf("decode event id: %w", err)
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, env.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("decode occurred_at: %w", err)
	}
	payload, err := DecodePayload(env.Kind, env.Payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          eventID,
		AggregateID: env.AggregateID,
		OccurredAt:  occurredAt,
		Sequence:    env.Sequence,
		Payload:     payload,
	}, nil
}
