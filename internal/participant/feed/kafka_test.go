package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"registrar/internal/participant/metrics"
	"registrar/internal/participant/models"
	"registrar/pkg/platform/circuit"
	"registrar/pkg/platform/sentinel"
)

// fakeProducer fails every record while down is true.
type fakeProducer struct {
	down     bool
	calls    int
	produced []*kgo.Record
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.calls++
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.down {
			results = append(results, kgo.ProduceResult{Record: r, Err: errors.New("broker unreachable")})
			continue
		}
		f.produced = append(f.produced, r)
		results = append(results, kgo.ProduceResult{Record: r})
	}
	return results
}

// hangingProducer never acknowledges; it returns once the context ends.
type hangingProducer struct{}

func (hangingProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	<-ctx.Done()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: ctx.Err()})
	}
	return results
}

func newPublisher(p Producer, opts ...Option) *KafkaPublisher {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return NewKafkaPublisher(p, "participant-events", append(base, opts...)...)
}

func deactivated(id string) models.Event {
	e := models.NewEvent(id, time.Now(), models.ParticipantDeactivated{})
	e.Sequence = 2
	return *e
}

func TestPublish_KeyedByAggregate(t *testing.T) {
	producer := &fakeProducer{}
	pub := newPublisher(producer)

	require.NoError(t, pub.Publish(context.Background(), deactivated("p-1")))

	require.Len(t, producer.produced, 1)
	rec := producer.produced[0]
	assert.Equal(t, "participant-events", rec.Topic)
	assert.Equal(t, []byte("p-1"), rec.Key)
	assert.Equal(t, "kind", rec.Headers[0].Key)
	assert.Equal(t, []byte(models.KindParticipantDeactivated), rec.Headers[0].Value)

	decoded, err := models.UnmarshalEvent(rec.Value)
	require.NoError(t, err)
	assert.Equal(t, "p-1", decoded.AggregateID)
	assert.Equal(t, int64(2), decoded.Sequence)
}

func TestPublish_FailureIsRetainedAndRetried(t *testing.T) {
	producer := &fakeProducer{down: true}
	pub := newPublisher(producer)
	ctx := context.Background()

	err := pub.Publish(ctx, deactivated("p-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 1, pub.Pending())

	producer.down = false
	require.NoError(t, pub.Publish(ctx, deactivated("p-2")))
	assert.Equal(t, 0, pub.Pending())

	require.Len(t, producer.produced, 2)
	assert.Equal(t, []byte("p-1"), producer.produced[0].Key)
	assert.Equal(t, []byte("p-2"), producer.produced[1].Key)
}

func TestPublish_BacklogIsBounded(t *testing.T) {
	producer := &fakeProducer{down: true}
	pub := newPublisher(producer, WithMaxBacklog(2))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = pub.Publish(ctx, deactivated(id))
	}
	assert.Equal(t, 2, pub.Pending())

	producer.down = false
	require.NoError(t, pub.Publish(ctx, deactivated("d")))
	keys := make([]string, 0, len(producer.produced))
	for _, r := range producer.produced {
		keys = append(keys, string(r.Key))
	}
	assert.Equal(t, []string{"b", "c", "d"}, keys)
}

func TestPublish_BreakerTracksFeedHealth(t *testing.T) {
	producer := &fakeProducer{down: true}
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	breaker := circuit.New("test-feed", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	pub := newPublisher(producer, WithBreaker(breaker), WithMetrics(m), WithRetryInterval(0))
	ctx := context.Background()

	_ = pub.Publish(ctx, deactivated("a"))
	assert.False(t, breaker.IsOpen())
	_ = pub.Publish(ctx, deactivated("b"))
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.FeedCircuitOpen))

	producer.down = false
	require.NoError(t, pub.Publish(ctx, deactivated("c")))
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, float64(0), promtestutil.ToFloat64(m.FeedCircuitOpen))
}

func TestPublish_OpenBreakerDefersToBacklog(t *testing.T) {
	producer := &fakeProducer{down: true}
	breaker := circuit.New("test-feed", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))
	pub := newPublisher(producer, WithBreaker(breaker), WithRetryInterval(time.Minute))
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = pub.Publish(ctx, deactivated("a"))
	require.True(t, breaker.IsOpen())
	require.Equal(t, 1, producer.calls)

	producer.down = false
	err := pub.Publish(ctx, deactivated("b"))
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 1, producer.calls, "open breaker must not reach the broker")
	assert.Equal(t, 2, pub.Pending())

	clock = clock.Add(time.Minute)
	require.NoError(t, pub.Publish(ctx, deactivated("c")))
	assert.Equal(t, 2, producer.calls)
	assert.Equal(t, 0, pub.Pending())
	assert.False(t, breaker.IsOpen())
}

func TestPublish_UnresponsiveBrokerIsBoundedByContext(t *testing.T) {
	pub := newPublisher(hangingProducer{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pub.Publish(ctx, deactivated("p-1")) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("publish outlived its context")
	}
	assert.Equal(t, 1, pub.Pending())
}
