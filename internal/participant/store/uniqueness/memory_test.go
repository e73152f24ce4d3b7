package uniqueness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"registrar/internal/participant/models"
)

type InMemorySuite struct {
	suite.Suite
	index *InMemory
	ctx   context.Context
}

func (s *InMemorySuite) SetupTest() {
	s.index = NewInMemory()
	s.ctx = context.Background()
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

// TestAddAndLookup verifies every applicable dimension is claimed.
func (s *InMemorySuite) TestAddAndLookup() {
	p := models.Person{Name: "Alice", SSN: "111-22-3333", HomePhone: "555-0100", Email: "a@example.com"}
	s.Require().NoError(s.index.Add(s.ctx, p, "p-1"))

	s.Run("present dimensions resolve to owner", func() {
		for _, d := range []Dimension{DimensionSSN, DimensionNameHomePhone, DimensionNameEmail} {
			key, ok := Key(d, p)
			s.Require().True(ok)
			owner, found, err := s.index.Lookup(s.ctx, d, key)
			s.Require().NoError(err)
			s.True(found, string(d))
			s.Equal("p-1", owner)
		}
	})

	s.Run("absent dimensions are not claimed", func() {
		_, found, err := s.index.Lookup(s.ctx, DimensionNameMobilePhone, "Alice:")
		s.Require().NoError(err)
		s.False(found)
	})

	s.Run("absent key is not an error", func() {
		owner, found, err := s.index.Lookup(s.ctx, DimensionSSN, "000-00-0000")
		s.Require().NoError(err)
		s.False(found)
		s.Empty(owner)
	})
}

// TestFirstWriterWins verifies an existing mapping is never overwritten.
func (s *InMemorySuite) TestFirstWriterWins() {
	s.Require().NoError(s.index.Add(s.ctx, models.Person{Name: "Bob", HomePhone: "555"}, "first"))
	s.Require().NoError(s.index.Add(s.ctx, models.Person{Name: "Bob", HomePhone: "555", SSN: "222"}, "second"))

	owner, found, err := s.index.Lookup(s.ctx, DimensionNameHomePhone, "Bob:555")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("first", owner)

	owner, found, err = s.index.Lookup(s.ctx, DimensionSSN, "222")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("second", owner)
}

// TestExecuteSerializesRegistrations verifies check-then-add inside Execute
// admits exactly one of many racing claimants.
func (s *InMemorySuite) TestExecuteSerializesRegistrations() {
	const goroutines = 50
	errTaken := errors.New("taken")
	var admitted atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.index.Execute(s.ctx, func(ctx context.Context, tx Tx) error {
				if _, found, _ := tx.Lookup(ctx, DimensionSSN, "111"); found {
					return errTaken
				}
				return tx.Add(ctx, models.Person{SSN: "111"}, "owner")
			})
			if err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), admitted.Load())
}

// TestExecutePropagatesCallbackError verifies fn's error is returned unchanged.
func (s *InMemorySuite) TestExecutePropagatesCallbackError() {
	boom := errors.New("boom")
	err := s.index.Execute(s.ctx, func(context.Context, Tx) error { return boom })
	s.ErrorIs(err, boom)

	// lock released afterwards
	s.Require().NoError(s.index.Add(s.ctx, models.Person{SSN: "x"}, "p"))
}
