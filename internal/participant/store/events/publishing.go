package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"registrar/internal/participant/metrics"
	"registrar/internal/participant/models"
	"registrar/pkg/platform/sentinel"
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 10 * time.Second
)

// Publisher delivers stored events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// PublishingStore appends to an inner store and queues the stored event for a
// Publisher. Delivery happens on the goroutine running Run, so Append never
// waits on the feed; callers appending under the registration lock keep it
// only as long as the inner append takes. The inner store is the source of
// truth: a failed or dropped publish is logged and counted but never fails
// the append.
type PublishingStore struct {
	inner          Store
	publisher      Publisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	queue          chan models.Event
	publishTimeout time.Duration
}

type PublishingOption func(*PublishingStore)

func WithPublishLogger(logger *slog.Logger) PublishingOption {
	return func(s *PublishingStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPublishMetrics(m *metrics.Metrics) PublishingOption {
	return func(s *PublishingStore) {
		s.metrics = m
	}
}

// WithQueueSize bounds the events waiting for delivery. Appends made while
// the queue is full are not published.
func WithQueueSize(n int) PublishingOption {
	return func(s *PublishingStore) {
		if n > 0 {
			s.queue = make(chan models.Event, n)
		}
	}
}

// WithPublishTimeout bounds a single delivery attempt.
func WithPublishTimeout(d time.Duration) PublishingOption {
	return func(s *PublishingStore) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func NewPublishing(inner Store, publisher Publisher, opts ...PublishingOption) *PublishingStore {
	s := &PublishingStore{
		inner:          inner,
		publisher:      publisher,
		logger:         slog.Default(),
		queue:          make(chan models.Event, defaultQueueSize),
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PublishingStore) Append(ctx context.Context, aggregateType string, event *models.Event) error {
	if err := s.inner.Append(ctx, aggregateType, event); err != nil {
		return err
	}
	select {
	case s.queue <- event.Clone():
	default:
		s.failed(ctx, *event, fmt.Errorf("publish queue full: %w", sentinel.ErrUnavailable))
	}
	return nil
}

func (s *PublishingStore) Load(ctx context.Context, aggregateType, aggregateID string) ([]models.Event, error) {
	return s.inner.Load(ctx, aggregateType, aggregateID)
}

// Run delivers queued events in append order until ctx is done, then makes
// one bounded pass over whatever is still queued.
func (s *PublishingStore) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return nil
		case e := <-s.queue:
			s.publish(ctx, e)
		}
	}
}

// Pending returns the number of events waiting for delivery.
func (s *PublishingStore) Pending() int {
	return len(s.queue)
}

func (s *PublishingStore) drain(ctx context.Context) {
	for {
		select {
		case e := <-s.queue:
			s.publish(ctx, e)
		default:
			return
		}
	}
}

func (s *PublishingStore) publish(ctx context.Context, e models.Event) {
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.failed(ctx, e, err)
	}
}

func (s *PublishingStore) failed(ctx context.Context, e models.Event, err error) {
	if s.metrics != nil {
		s.metrics.IncrementFeedPublishFailure()
	}
	s.logger.WarnContext(ctx, "event appended but not published",
		"aggregate_id", e.AggregateID,
		"kind", e.Kind(),
		"sequence", e.Sequence,
		"error", err,
	)
}
