package models

import (
	"time"

	"github.com/google/uuid"
)

// AggregateType is the stream namespace for every participant event.
const AggregateType = "participant"

// Kind identifies an event variant on the wire and in storage.
type Kind string

const (
	KindPersonAcquired         Kind = "person-acquired"
	KindOrganizationAcquired   Kind = "organization-acquired"
	KindParticipantDeactivated Kind = "participant-deactivated"
	KindPersonSSNChanged       Kind = "person-ssn-changed"
	KindPersonHomePhoneChanged Kind = "person-home-phone-changed"
)

// Payload is the closed set of event bodies. Only types in this package
// implement it.
type Payload interface {
	Kind() Kind
	sealed()
}

type PersonAcquired struct {
	Person Person `json:"person"`
}

type OrganizationAcquired struct {
	Organization Organization `json:"organization"`
}

type ParticipantDeactivated struct{}

type PersonSSNChanged struct {
	SSN string `json:"ssn"`
}

type PersonHomePhoneChanged struct {
	HomePhone string `json:"home_phone"`
}

func (PersonAcquired) Kind() Kind         { return KindPersonAcquired }
func (OrganizationAcquired) Kind() Kind   { return KindOrganizationAcquired }
func (ParticipantDeactivated) Kind() Kind { return KindParticipantDeactivated }
func (PersonSSNChanged) Kind() Kind       { return KindPersonSSNChanged }
func (PersonHomePhoneChanged) Kind() Kind { return KindPersonHomePhoneChanged }

func (PersonAcquired) sealed()         {}
func (OrganizationAcquired) sealed()   {}
func (ParticipantDeactivated) sealed() {}
func (PersonSSNChanged) sealed()       {}
func (PersonHomePhoneChanged) sealed() {}

// Event is an immutable fact about one participant. Sequence is assigned by
// the store on append and is 1-based within the stream.
type Event struct {
	ID          uuid.UUID
	AggregateID string
	OccurredAt  time.Time
	Sequence    int64
	Payload     Payload
}

// NewEvent stamps a payload with a fresh event id.
func NewEvent(aggregateID string, occurredAt time.Time, payload Payload) *Event {
	return &Event{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		OccurredAt:  occurredAt,
		Payload:     payload,
	}
}

// Kind returns the payload's kind, or "" for an event without payload.
func (e Event) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// Clone returns a copy of e whose payload shares no pointers with e. Stores
// hand out clones so appended events cannot be changed through a caller's
// reference.
func (e Event) Clone() Event {
	switch p := e.Payload.(type) {
	case PersonAcquired:
		e.Payload = PersonAcquired{Person: p.Person.Clone()}
	case OrganizationAcquired:
		e.Payload = OrganizationAcquired{Organization: p.Organization.Clone()}
	}
	return e
}
