package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"registrar/internal/participant/models"
	"registrar/internal/participant/store/uniqueness"
	"registrar/internal/participant/store/uniqueness/mocks"
	"registrar/pkg/platform/sentinel"
)

//go:generate mockgen -source=../store/uniqueness/dimension.go -destination=../store/uniqueness/mocks/mocks.go -package=mocks Reader
type PipelineSuite struct {
	suite.Suite
	ctx   context.Context
	index *uniqueness.InMemory
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
	s.index = uniqueness.NewInMemory()
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) register(p models.Person, id string) {
	s.Require().NoError(s.index.Add(s.ctx, p, id))
}

// TestSSNCheck covers the three outcomes of the first link.
func (s *PipelineSuite) TestSSNCheck() {
	p := New()

	s.Run("unoccupied ssn finalizes after one check", func() {
		out, err := p.Run(s.ctx, &models.Person{Name: "Alice", SSN: "111-22-3333"}, s.index)
		s.Require().NoError(err)
		s.True(out.Finalized)
		s.Equal([]uniqueness.Dimension{uniqueness.DimensionSSN}, out.Checked)
	})

	s.Run("occupied ssn names the owner", func() {
		s.register(models.Person{SSN: "111-22-3333"}, "owner-1")

		_, err := p.Run(s.ctx, &models.Person{Name: "Someone Else", SSN: "111-22-3333"}, s.index)
		s.Require().Error(err)
		var conflict *Conflict
		s.Require().True(errors.As(err, &conflict))
		s.Equal(uniqueness.DimensionSSN, conflict.Dimension)
		s.Equal("owner-1", conflict.ExistingID)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing ssn runs the whole chain", func() {
		out, err := p.Run(s.ctx, &models.Person{Name: "Carol"}, s.index)
		s.Require().NoError(err)
		s.False(out.Finalized)
		s.Equal(uniqueness.Dimensions, out.Checked)
	})
}

// TestSSNBypassesNameChecks shows that a fresh SSN admits a duplicate
// name+home phone, while without an SSN the duplicate is rejected.
func (s *PipelineSuite) TestSSNBypassesNameChecks() {
	s.register(models.Person{Name: "Bob", HomePhone: "555"}, "bob-1")
	p := New()

	_, err := p.Run(s.ctx, &models.Person{Name: "Bob", HomePhone: "555", SSN: "999-00-1111"}, s.index)
	s.NoError(err)

	_, err = p.Run(s.ctx, &models.Person{Name: "Bob", HomePhone: "555"}, s.index)
	var conflict *Conflict
	s.Require().True(errors.As(err, &conflict))
	s.Equal(uniqueness.DimensionNameHomePhone, conflict.Dimension)
	s.Equal("bob-1", conflict.ExistingID)
}

// TestStrictSSN verifies strict mode enforces every dimension even with a fresh SSN.
func (s *PipelineSuite) TestStrictSSN() {
	s.register(models.Person{Name: "Bob", HomePhone: "555"}, "bob-1")
	p := New(WithStrictSSN())

	_, err := p.Run(s.ctx, &models.Person{Name: "Bob", HomePhone: "555", SSN: "999-00-1111"}, s.index)
	var conflict *Conflict
	s.Require().True(errors.As(err, &conflict))
	s.Equal(uniqueness.DimensionNameHomePhone, conflict.Dimension)

	out, err := p.Run(s.ctx, &models.Person{Name: "Dana", SSN: "999-00-2222"}, s.index)
	s.Require().NoError(err)
	s.False(out.Finalized)
	s.Equal(uniqueness.Dimensions, out.Checked)
}

// TestNameDimensions verifies each name-based dimension rejects its own duplicate.
func (s *PipelineSuite) TestNameDimensions() {
	addr := &models.Address{Address1: "1 Main St", City: "Springfield", State: "IL", Country: "US", ZipCode: "62701"}
	existing := models.Person{Name: "Eve", MobilePhone: "555-0199", Email: "eve@example.com", Address: addr}
	s.register(existing, "eve-1")
	p := New()

	cases := []struct {
		name      string
		candidate models.Person
		want      uniqueness.Dimension
	}{
		{"mobile phone", models.Person{Name: "Eve", MobilePhone: "555-0199"}, uniqueness.DimensionNameMobilePhone},
		{"email", models.Person{Name: "Eve", Email: "eve@example.com"}, uniqueness.DimensionNameEmail},
		{"address", models.Person{Name: "Eve", Address: &models.Address{Address1: "1 Main St", City: "Springfield", State: "IL", Country: "US", ZipCode: "62701"}}, uniqueness.DimensionNameAddress},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			candidate := tc.candidate
			_, err := p.Run(s.ctx, &candidate, s.index)
			var conflict *Conflict
			s.Require().True(errors.As(err, &conflict))
			s.Equal(tc.want, conflict.Dimension)
			s.Equal("eve-1", conflict.ExistingID)
		})
	}

	s.Run("email differing only by case is distinct", func() {
		_, err := p.Run(s.ctx, &models.Person{Name: "Eve", Email: "EVE@example.com"}, s.index)
		s.NoError(err)
	})
}

// TestNilCandidate verifies every check continues for a nil candidate.
func (s *PipelineSuite) TestNilCandidate() {
	ctrl := gomock.NewController(s.T())
	reader := mocks.NewMockReader(ctrl)

	out, err := New().Run(s.ctx, nil, reader)
	s.Require().NoError(err)
	s.False(out.Finalized)
	s.Equal(uniqueness.Dimensions, out.Checked)
}

// TestFinalizeSkipsLaterLookups verifies no lookup runs after the SSN check finalizes.
func (s *PipelineSuite) TestFinalizeSkipsLaterLookups() {
	ctrl := gomock.NewController(s.T())
	reader := mocks.NewMockReader(ctrl)
	reader.EXPECT().Lookup(gomock.Any(), uniqueness.DimensionSSN, "111").Return("", false, nil).Times(1)

	out, err := New().Run(s.ctx, &models.Person{Name: "Bob", HomePhone: "555", Email: "b@example.com", SSN: "111"}, reader)
	s.Require().NoError(err)
	s.True(out.Finalized)
}

// TestLookupErrorStopsChain verifies backend failures are surfaced, not treated as free keys.
func (s *PipelineSuite) TestLookupErrorStopsChain() {
	ctrl := gomock.NewController(s.T())
	reader := mocks.NewMockReader(ctrl)
	boom := errors.New("redis down")
	reader.EXPECT().Lookup(gomock.Any(), uniqueness.DimensionNameHomePhone, "Bob:555").Return("", false, boom)

	out, err := New().Run(s.ctx, &models.Person{Name: "Bob", HomePhone: "555"}, reader)
	s.ErrorIs(err, boom)
	s.Equal([]uniqueness.Dimension{uniqueness.DimensionSSN}, out.Checked)
}

// TestCustomChain verifies an explicit chain runs in the given order.
func (s *PipelineSuite) TestCustomChain() {
	p := NewWithChecks(pairCheck{dimension: uniqueness.DimensionNameEmail})
	out, err := p.Run(s.ctx, &models.Person{Name: "Zed", Email: "z@example.com"}, s.index)
	s.Require().NoError(err)
	s.Equal([]uniqueness.Dimension{uniqueness.DimensionNameEmail}, out.Checked)
}
