package handler

import (
	"strings"

	"registrar/internal/participant/models"
	dErrors "registrar/pkg/domain-errors"
)

const maxFieldLength = 256

// AddressRequest is the wire form of a postal address.
type AddressRequest struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	ZipCode  string `json:"zip_code"`
}

func (a *AddressRequest) normalize() {
	a.Address1 = strings.TrimSpace(a.Address1)
	a.Address2 = strings.TrimSpace(a.Address2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Country = strings.TrimSpace(a.Country)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
}

func (a *AddressRequest) toModel() *models.Address {
	if a == nil {
		return nil
	}
	return &models.Address{
		Address1: a.Address1,
		Address2: a.Address2,
		City:     a.City,
		State:    a.State,
		Country:  a.Country,
		ZipCode:  a.ZipCode,
	}
}

// CreatePersonRequest is the body of POST /participants/person.
type CreatePersonRequest struct {
	Name        string          `json:"name"`
	SSN         string          `json:"ssn"`
	HomePhone   string          `json:"home_phone"`
	MobilePhone string          `json:"mobile_phone"`
	Email       string          `json:"email"`
	Address     *AddressRequest `json:"address"`
}

// Normalize trims whitespace. Case is preserved because uniqueness keys are case-sensitive.
func (r *CreatePersonRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.SSN = strings.TrimSpace(r.SSN)
	r.HomePhone = strings.TrimSpace(r.HomePhone)
	r.MobilePhone = strings.TrimSpace(r.MobilePhone)
	r.Email = strings.TrimSpace(r.Email)
	if r.Address != nil {
		r.Address.normalize()
	}
}

func (r *CreatePersonRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	for _, f := range []string{r.Name, r.SSN, r.HomePhone, r.MobilePhone, r.Email} {
		if len(f) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, "fields must be at most 256 characters")
		}
	}
	return nil
}

func (r *CreatePersonRequest) ToModel() *models.Person {
	return &models.Person{
		Name:        r.Name,
		SSN:         r.SSN,
		HomePhone:   r.HomePhone,
		MobilePhone: r.MobilePhone,
		Email:       r.Email,
		Address:     r.Address.toModel(),
	}
}

// CreateOrganizationRequest is the body of POST /participants/organization.
type CreateOrganizationRequest struct {
	Name    string          `json:"name"`
	EIN     string          `json:"ein"`
	Address *AddressRequest `json:"address"`
}

func (r *CreateOrganizationRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.EIN = strings.TrimSpace(r.EIN)
	if r.Address != nil {
		r.Address.normalize()
	}
}

func (r *CreateOrganizationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxFieldLength || len(r.EIN) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "fields must be at most 256 characters")
	}
	return nil
}

func (r *CreateOrganizationRequest) ToModel() *models.Organization {
	return &models.Organization{
		Name:    r.Name,
		EIN:     r.EIN,
		Address: r.Address.toModel(),
	}
}

// ModifyPersonRequest is the body of PUT /participants/person/{id}. Omitted
// fields are left unchanged.
type ModifyPersonRequest struct {
	SSN       *string `json:"ssn"`
	HomePhone *string `json:"home_phone"`
}

func (r *ModifyPersonRequest) Normalize() {
	if r.SSN != nil {
		v := strings.TrimSpace(*r.SSN)
		r.SSN = &v
	}
	if r.HomePhone != nil {
		v := strings.TrimSpace(*r.HomePhone)
		r.HomePhone = &v
	}
}

func (r *ModifyPersonRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.SSN == nil && r.HomePhone == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one of ssn or home_phone is required")
	}
	return nil
}

func (r *ModifyPersonRequest) ToModel() models.PersonChanges {
	return models.PersonChanges{SSN: r.SSN, HomePhone: r.HomePhone}
}
