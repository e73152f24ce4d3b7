// Package feed publishes stored participant events to Kafka.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"registrar/internal/participant/metrics"
	"registrar/internal/participant/models"
	"registrar/pkg/platform/circuit"
	"registrar/pkg/platform/sentinel"
)

const (
	defaultBacklog       = 1024
	defaultRetryInterval = 5 * time.Second
)

// Producer is the subset of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher produces one record per event, keyed by aggregate id so a
// participant's events land on one partition in order. Records that fail to
// produce are kept in a bounded backlog and retried ahead of the next event.
// While the breaker is open, at most one produce per retry interval reaches
// the broker; other events go straight to the backlog.
type KafkaPublisher struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu            sync.Mutex
	backlog       []*kgo.Record
	maxBacklog    int
	retryInterval time.Duration
	lastAttempt   time.Time
	now           func() time.Time
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *KafkaPublisher) {
		p.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *KafkaPublisher) {
		if b != nil {
			p.breaker = b
		}
	}
}

// WithMaxBacklog bounds the retry backlog; the oldest record is dropped when full.
func WithMaxBacklog(n int) Option {
	return func(p *KafkaPublisher) {
		if n > 0 {
			p.maxBacklog = n
		}
	}
}

// WithRetryInterval sets how often an open breaker lets a produce through.
// Zero tries the broker on every event.
func WithRetryInterval(d time.Duration) Option {
	return func(p *KafkaPublisher) {
		if d >= 0 {
			p.retryInterval = d
		}
	}
}

func NewKafkaPublisher(producer Producer, topic string, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		producer:      producer,
		topic:         topic,
		breaker:       circuit.New("participant-feed"),
		logger:        slog.Default(),
		maxBacklog:    defaultBacklog,
		retryInterval: defaultRetryInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.Event) error {
	ctx, span := otel.Tracer("registrar/feed").Start(ctx, "kafka.produce")
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("participant.id", event.AggregateID),
		attribute.String("event.kind", string(event.Kind())),
	)
	defer span.End()

	value, err := models.MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("encode event for feed: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.AggregateID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(event.Kind())},
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.breaker.IsOpen() && now.Sub(p.lastAttempt) < p.retryInterval {
		p.retain(rec)
		span.SetStatus(codes.Error, "circuit open")
		return fmt.Errorf("feed circuit open, %s for %s deferred: %w", event.Kind(), event.AggregateID, sentinel.ErrUnavailable)
	}
	p.lastAttempt = now

	batch := append(p.backlog, rec)
	p.backlog = nil
	results := p.producer.ProduceSync(ctx, batch...)

	var current error
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		if res.Record == rec {
			current = res.Err
		}
		p.retain(res.Record)
	}

	if len(p.backlog) == 0 {
		p.recordSuccess(ctx)
	} else {
		p.recordFailure(ctx, results.FirstErr())
	}

	if current != nil {
		span.RecordError(current)
		span.SetStatus(codes.Error, current.Error())
		return fmt.Errorf("produce %s for %s: %w", event.Kind(), event.AggregateID, errors.Join(sentinel.ErrUnavailable, current))
	}
	return nil
}

// Pending returns the number of records waiting for a retry.
func (p *KafkaPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.backlog)
}

func (p *KafkaPublisher) retain(rec *kgo.Record) {
	if len(p.backlog) >= p.maxBacklog {
		dropped := p.backlog[0]
		p.backlog = p.backlog[1:]
		p.logger.Error("event feed backlog full, dropping record",
			"participant_id", string(dropped.Key),
		)
	}
	p.backlog = append(p.backlog, rec)
}

func (p *KafkaPublisher) recordFailure(ctx context.Context, err error) {
	_, change := p.breaker.RecordFailure()
	if change.Opened {
		p.logger.WarnContext(ctx, "event feed circuit opened",
			"breaker", p.breaker.Name(),
			"pending", len(p.backlog),
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.SetFeedCircuitOpen(true)
		}
	}
}

func (p *KafkaPublisher) recordSuccess(ctx context.Context) {
	_, change := p.breaker.RecordSuccess()
	if change.Closed {
		p.logger.InfoContext(ctx, "event feed circuit closed", "breaker", p.breaker.Name())
		if p.metrics != nil {
			p.metrics.SetFeedCircuitOpen(false)
		}
	}
}
