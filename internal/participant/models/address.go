package models

import "strings"

// Address is a postal address attached to a person or organization.
type Address struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	ZipCode  string `json:"zip_code"`
}

// String renders the address as its comma-joined parts. The name+address
// uniqueness key is built from this form, so the format is stable.
func (a Address) String() string {
	return strings.Join([]string{a.Address1, a.Address2, a.City, a.State, a.Country, a.ZipCode}, ", ")
}
