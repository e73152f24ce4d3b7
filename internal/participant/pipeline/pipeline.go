// Package pipeline runs the ordered uniqueness checks a person candidate must
// pass before its acquired event is recorded.
//
// Checks run in priority order: SSN, name+home phone, name+mobile phone,
// name+email, name+address. The first check to reject or finalize ends the
// run. An unoccupied SSN finalizes on its own, so a candidate with a fresh SSN
// is never tested against the name-based dimensions; WithStrictSSN turns that
// shortcut off.
package pipeline

import (
	"context"
	"fmt"

	"registrar/internal/participant/models"
	"registrar/internal/participant/store/uniqueness"
	"registrar/pkg/platform/sentinel"
)

// Action is what a check decided.
type Action int

const (
	ActionContinue Action = iota
	ActionFinalize
	ActionReject
)

// Verdict is the result of one check.
type Verdict struct {
	Action   Action
	Conflict *Conflict
}

func Continue() Verdict { return Verdict{Action: ActionContinue} }

func Finalize() Verdict { return Verdict{Action: ActionFinalize} }

func Reject(c *Conflict) Verdict { return Verdict{Action: ActionReject, Conflict: c} }

// Conflict reports a dimension already owned by another participant.
type Conflict struct {
	Dimension  uniqueness.Dimension
	ExistingID string
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("%s already registered to participant %s", c.Dimension, c.ExistingID)
}

func (c *Conflict) Unwrap() error {
	return sentinel.ErrConflict
}

// Check is one link in the chain.
type Check interface {
	Dimension() uniqueness.Dimension
	Evaluate(ctx context.Context, candidate *models.Person, r uniqueness.Reader) (Verdict, error)
}

// Outcome describes a successful run.
type Outcome struct {
	// Finalized is true when a check ended the run before the chain was exhausted.
	Finalized bool
	// Checked lists the dimensions whose check ran, in order.
	Checked []uniqueness.Dimension
}

// Pipeline is an immutable ordered list of checks.
type Pipeline struct {
	checks []Check
}

type Option func(*options)

type options struct {
	strictSSN bool
}

// WithStrictSSN makes the SSN check continue instead of finalizing, so every
// dimension is enforced.
func WithStrictSSN() Option {
	return func(o *options) {
		o.strictSSN = true
	}
}

// New builds the default chain.
func New(opts ...Option) *Pipeline {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline{checks: []Check{
		ssnCheck{finalize: !o.strictSSN},
		pairCheck{dimension: uniqueness.DimensionNameHomePhone},
		pairCheck{dimension: uniqueness.DimensionNameMobilePhone},
		pairCheck{dimension: uniqueness.DimensionNameEmail},
		pairCheck{dimension: uniqueness.DimensionNameAddress},
	}}
}

// NewWithChecks builds a pipeline from an explicit chain.
func NewWithChecks(checks ...Check) *Pipeline {
	return &Pipeline{checks: append([]Check(nil), checks...)}
}

// Run evaluates the chain against r. A rejected candidate returns a *Conflict
// error; lookup failures are returned as-is.
func (p *Pipeline) Run(ctx context.Context, candidate *models.Person, r uniqueness.Reader) (Outcome, error) {
	var out Outcome
	for _, check := range p.checks {
		verdict, err := check.Evaluate(ctx, candidate, r)
		if err != nil {
			return out, err
		}
		out.Checked = append(out.Checked, check.Dimension())
		switch verdict.Action {
		case ActionReject:
			return out, verdict.Conflict
		case ActionFinalize:
			out.Finalized = true
			return out, nil
		}
	}
	return out, nil
}
