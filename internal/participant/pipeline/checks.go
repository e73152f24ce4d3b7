package pipeline

import (
	"context"

	"registrar/internal/participant/models"
	"registrar/internal/participant/store/uniqueness"
)

type ssnCheck struct {
	finalize bool
}

func (ssnCheck) Dimension() uniqueness.Dimension {
	return uniqueness.DimensionSSN
}

func (c ssnCheck) Evaluate(ctx context.Context, candidate *models.Person, r uniqueness.Reader) (Verdict, error) {
	verdict, err := occupied(ctx, uniqueness.DimensionSSN, candidate, r)
	if err != nil || verdict.Action == ActionReject {
		return verdict, err
	}
	if c.finalize && candidate != nil && candidate.SSN != "" {
		return Finalize(), nil
	}
	return Continue(), nil
}

// pairCheck covers the name-based dimensions: continue when a field is
// missing or the key is free, reject when it is owned.
type pairCheck struct {
	dimension uniqueness.Dimension
}

func (c pairCheck) Dimension() uniqueness.Dimension {
	return c.dimension
}

func (c pairCheck) Evaluate(ctx context.Context, candidate *models.Person, r uniqueness.Reader) (Verdict, error) {
	return occupied(ctx, c.dimension, candidate, r)
}

func occupied(ctx context.Context, d uniqueness.Dimension, candidate *models.Person, r uniqueness.Reader) (Verdict, error) {
	if candidate == nil {
		return Continue(), nil
	}
	key, ok := uniqueness.Key(d, *candidate)
	if !ok {
		return Continue(), nil
	}
	owner, found, err := r.Lookup(ctx, d, key)
	if err != nil {
		return Verdict{}, err
	}
	if found {
		return Reject(&Conflict{Dimension: d, ExistingID: owner}), nil
	}
	return Continue(), nil
}
