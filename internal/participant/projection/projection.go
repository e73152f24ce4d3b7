// Package projection folds participant event streams into current state.
package projection

import (
	"fmt"
	"sort"

	"registrar/internal/participant/models"
)

// Projection is a fold over events in stream order. It is not safe for
// concurrent use; build one per read.
type Projection struct {
	participants map[string]*models.Participant
}

func New() *Projection {
	return &Projection{participants: make(map[string]*models.Participant)}
}

// Load applies events in order. It may be called repeatedly to continue a fold.
// An event without a payload is a programming error and panics.
func (p *Projection) Load(events []models.Event) *Projection {
	for _, e := range events {
		p.apply(e)
	}
	return p
}

// Get returns the folded record for id.
func (p *Projection) Get(id string) (*models.Participant, bool) {
	rec, ok := p.participants[id]
	return rec, ok
}

// Participants returns every folded record ordered by id.
func (p *Projection) Participants() []*models.Participant {
	out := make([]*models.Participant, 0, len(p.participants))
	for _, rec := range p.participants {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Projection) apply(e models.Event) {
	rec := p.ensure(e.AggregateID)
	switch payload := e.Payload.(type) {
	case models.PersonAcquired:
		rec.ApplyPerson(e.AggregateID, payload.Person)
	case models.OrganizationAcquired:
		rec.ApplyOrganization(e.AggregateID, payload.Organization)
	case models.ParticipantDeactivated:
		rec.IsActive = false
	case models.PersonSSNChanged:
		rec.SSN = payload.SSN
	case models.PersonHomePhoneChanged:
		rec.HomePhone = payload.HomePhone
	default:
		panic(fmt.Sprintf("projection: unhandled event payload %T for %s", e.Payload, e.AggregateID))
	}
}

func (p *Projection) ensure(id string) *models.Participant {
	rec, ok := p.participants[id]
	if !ok {
		rec = &models.Participant{ID: id}
		p.participants[id] = rec
	}
	return rec
}
