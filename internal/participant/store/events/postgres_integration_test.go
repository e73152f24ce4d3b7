//go:build integration

package events_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registrar/internal/participant/models"
	"registrar/internal/participant/store/events"
	"registrar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *events.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = events.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "participant_events"))
}

// TestRoundTripEveryKind verifies payloads survive the JSONB column.
func (s *PostgresStoreSuite) TestRoundTripEveryKind() {
	ctx := context.Background()
	id := uuid.NewString()
	at := time.Now().UTC().Truncate(time.Microsecond)
	payloads := []models.Payload{
		models.PersonAcquired{Person: models.Person{Name: "Alice", SSN: "111-22-3333", IsActive: true,
			Address: &models.Address{Address1: "1 Main St", City: "Springfield", ZipCode: "62701"}}},
		models.PersonSSNChanged{SSN: "999-88-7777"},
		models.PersonHomePhoneChanged{HomePhone: "555-0100"},
		models.ParticipantDeactivated{},
	}
	for _, p := range payloads {
		s.Require().NoError(s.store.Append(ctx, models.AggregateType, models.NewEvent(id, at, p)))
	}

	got, err := s.store.Load(ctx, models.AggregateType, id)
	s.Require().NoError(err)
	s.Require().Len(got, len(payloads))
	for i, e := range got {
		s.Equal(int64(i+1), e.Sequence)
		s.Equal(payloads[i], e.Payload)
		s.Equal(id, e.AggregateID)
		s.True(at.Equal(e.OccurredAt))
	}
}

// TestUnknownStreamIsEmpty verifies Load never errors for a missing stream.
func (s *PostgresStoreSuite) TestUnknownStreamIsEmpty() {
	got, err := s.store.Load(context.Background(), models.AggregateType, "missing")
	s.Require().NoError(err)
	s.NotNil(got)
	s.Empty(got)
}

// TestAggregateTypeIsCaseInsensitive verifies the stored stream key is lower-cased.
func (s *PostgresStoreSuite) TestAggregateTypeIsCaseInsensitive() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, "Participant", models.NewEvent("p-1", time.Now(), models.ParticipantDeactivated{})))

	got, err := s.store.Load(ctx, "participant", "p-1")
	s.Require().NoError(err)
	s.Len(got, 1)
}

// TestConcurrentAppendsKeepDenseSequences verifies the unique-violation retry
// resolves writers racing on the same stream.
func (s *PostgresStoreSuite) TestConcurrentAppendsKeepDenseSequences() {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.store.Append(ctx, models.AggregateType,
				models.NewEvent("p-race", time.Now(), models.PersonSSNChanged{SSN: fmt.Sprintf("%d", i)}))
		}(i)
	}
	wg.Wait()
	close(errs)

	var failed int
	for err := range errs {
		if err != nil {
			failed++
		}
	}

	got, err := s.store.Load(ctx, models.AggregateType, "p-race")
	s.Require().NoError(err)
	s.Len(got, writers-failed)
	for i, e := range got {
		s.Equal(int64(i+1), e.Sequence)
	}
}
