// Package uniqueness maps composite participant keys to the id that first claimed them.
package uniqueness

import (
	"context"

	"registrar/internal/participant/models"
)

// Dimension names one uniqueness constraint.
type Dimension string

const (
	DimensionSSN             Dimension = "ssn"
	DimensionNameHomePhone   Dimension = "name_home_phone"
	DimensionNameMobilePhone Dimension = "name_mobile_phone"
	DimensionNameEmail       Dimension = "name_email"
	DimensionNameAddress     Dimension = "name_address"
)

// Dimensions lists every dimension in check priority order.
var Dimensions = []Dimension{
	DimensionSSN,
	DimensionNameHomePhone,
	DimensionNameMobilePhone,
	DimensionNameEmail,
	DimensionNameAddress,
}

// Key returns the composite key for p in dimension d. ok is false when any
// constituent field is empty, in which case the dimension does not apply.
// Keys are case-sensitive.
func Key(d Dimension, p models.Person) (key string, ok bool) {
	switch d {
	case DimensionSSN:
		return p.SSN, p.SSN != ""
	case DimensionNameHomePhone:
		return pair(p.Name, p.HomePhone)
	case DimensionNameMobilePhone:
		return pair(p.Name, p.MobilePhone)
	case DimensionNameEmail:
		return pair(p.Name, p.Email)
	case DimensionNameAddress:
		if p.Address == nil {
			return "", false
		}
		return pair(p.Name, p.Address.String())
	default:
		return "", false
	}
}

func pair(a, b string) (string, bool) {
	if a == "" || b == "" {
		return "", false
	}
	return a + ":" + b, true
}

// Reader answers ownership lookups.
type Reader interface {
	// Lookup returns the owning id of key in d. An absent key is not an error.
	Lookup(ctx context.Context, d Dimension, key string) (string, bool, error)
}

// Tx is the view handed to Execute callbacks.
type Tx interface {
	Reader
	// Add claims every applicable key of p for id. Keys already owned are left untouched.
	Add(ctx context.Context, p models.Person, id string) error
}

// Index is the uniqueness index contract shared by every backend.
type Index interface {
	Tx
	// Execute runs fn while holding the registration lock, so lookups, the
	// event append and Add performed inside fn are atomic with respect to
	// other Execute calls.
	Execute(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
