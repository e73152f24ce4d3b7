package models

// ParticipantType distinguishes the two acquired variants in the read model.
type ParticipantType string

const (
	ParticipantTypePerson       ParticipantType = "person"
	ParticipantTypeOrganization ParticipantType = "organization"
)

// Participant is the current-state read model folded from a stream. It is
// rebuilt on every read and never stored.
type Participant struct {
	ID          string          `json:"id"`
	Type        ParticipantType `json:"type,omitempty"`
	IsActive    bool            `json:"is_active"`
	Name        string          `json:"name"`
	SSN         string          `json:"ssn,omitempty"`
	HomePhone   string          `json:"home_phone,omitempty"`
	MobilePhone string          `json:"mobile_phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	EIN         string          `json:"ein,omitempty"`
	Address     *Address        `json:"address,omitempty"`
}

// ApplyPerson overwrites the record with a person snapshot.
func (p *Participant) ApplyPerson(id string, snap Person) {
	*p = Participant{
		ID:          id,
		Type:        ParticipantTypePerson,
		IsActive:    snap.IsActive,
		Name:        snap.Name,
		SSN:         snap.SSN,
		HomePhone:   snap.HomePhone,
		MobilePhone: snap.MobilePhone,
		Email:       snap.Email,
		Address:     cloneAddress(snap.Address),
	}
}

// ApplyOrganization overwrites the record with an organization snapshot.
func (p *Participant) ApplyOrganization(id string, snap Organization) {
	*p = Participant{
		ID:       id,
		Type:     ParticipantTypeOrganization,
		IsActive: snap.IsActive,
		Name:     snap.Name,
		EIN:      snap.EIN,
		Address:  cloneAddress(snap.Address),
	}
}

func cloneAddress(a *Address) *Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
