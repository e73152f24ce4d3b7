package models

// Person is both the creation candidate and the snapshot embedded in a
// person-acquired event.
type Person struct {
	Name        string   `json:"name"`
	SSN         string   `json:"ssn,omitempty"`
	HomePhone   string   `json:"home_phone,omitempty"`
	MobilePhone string   `json:"mobile_phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Address     *Address `json:"address,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// PersonChanges carries the fields a modify request may change. Nil means
// "leave as is".
type PersonChanges struct {
	SSN       *string
	HomePhone *string
}

// IsEmpty reports whether no field was supplied.
func (c PersonChanges) IsEmpty() bool {
	return c.SSN == nil && c.HomePhone == nil
}

// Clone returns a copy that shares no pointers with p.
func (p Person) Clone() Person {
	p.Address = cloneAddress(p.Address)
	return p
}
