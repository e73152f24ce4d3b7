package models

// Organization is the snapshot embedded in an organization-acquired event.
type Organization struct {
	Name     string   `json:"name"`
	EIN      string   `json:"ein,omitempty"`
	Address  *Address `json:"address,omitempty"`
	IsActive bool     `json:"is_active"`
}

// Clone returns a copy that shares no pointers with o.
func (o Organization) Clone() Organization {
	o.Address = cloneAddress(o.Address)
	return o
}
