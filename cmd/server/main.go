package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"registrar/internal/participant"
	"registrar/internal/participant/feed"
	participantmetrics "registrar/internal/participant/metrics"
	"registrar/internal/participant/pipeline"
	"registrar/internal/participant/service"
	"registrar/internal/participant/store/events"
	"registrar/internal/participant/store/uniqueness"
	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/kafka"
	"registrar/internal/platform/logger"
	"registrar/internal/platform/metrics"
	"registrar/internal/platform/middleware"
	"registrar/internal/platform/postgres"
	"registrar/internal/platform/redis"
	"registrar/pkg/platform/httputil"
)

// infra holds the optional backing clients so they can be health-checked and closed.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func (i *infra) health(ctx context.Context) error {
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if i.kafka != nil {
		if err := kafka.Health(ctx, i.kafka); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}
	return nil
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	deps := &infra{}
	defer deps.close()

	participantMetrics := participantmetrics.New()

	store, outbox, err := buildEventStore(ctx, cfg, log, participantMetrics, deps)
	if err != nil {
		return err
	}
	index, err := buildIndex(ctx, cfg, deps)
	if err != nil {
		return err
	}

	var pipelineOpts []pipeline.Option
	if cfg.Server.StrictUniqueness {
		pipelineOpts = append(pipelineOpts, pipeline.WithStrictSSN())
	}
	svc := participant.NewService(store, index,
		service.WithLogger(log),
		service.WithMetrics(participantMetrics),
		service.WithPipeline(pipeline.New(pipelineOpts...)),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics(metrics.New()))
	participant.NewHandler(svc, log).Register(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		hctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.health(hctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting registrar",
			"addr", cfg.Server.Addr,
			"event_store", cfg.EventStore.Backend,
			"uniqueness", cfg.Redis.Backend,
			"feed", cfg.FeedEnabled(),
			"strict_uniqueness", cfg.Server.StrictUniqueness,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if outbox != nil {
		g.Go(func() error { return outbox.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildEventStore returns the store the service appends to and, when the
// feed is enabled, the publishing decorator whose Run must be started.
func buildEventStore(ctx context.Context, cfg config.Config, log *slog.Logger, m *participantmetrics.Metrics, deps *infra) (events.Store, *events.PublishingStore, error) {
	var store events.Store = events.NewInMemoryStore()
	if cfg.EventStore.Backend == config.BackendPostgres {
		db, err := postgres.Open(ctx, cfg.EventStore.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		deps.db = db
		pg := events.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		store = pg
	}

	if !cfg.FeedEnabled() {
		return store, nil, nil
	}
	client, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	deps.kafka = client
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka); err != nil {
		return nil, nil, err
	}
	publisher := feed.NewKafkaPublisher(client, cfg.Kafka.Topic,
		feed.WithLogger(log),
		feed.WithMetrics(m),
	)
	outbox := events.NewPublishing(store, publisher,
		events.WithPublishLogger(log),
		events.WithPublishMetrics(m),
		events.WithPublishTimeout(cfg.Kafka.DeliveryTimeout),
	)
	return outbox, outbox, nil
}

func buildIndex(ctx context.Context, cfg config.Config, deps *infra) (uniqueness.Index, error) {
	if cfg.Redis.Backend != config.BackendRedis {
		return uniqueness.NewInMemory(), nil
	}
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	deps.redis = client
	return uniqueness.NewRedis(client.Client,
		uniqueness.WithLockTTL(cfg.Redis.LockTTL),
		uniqueness.WithLockWait(cfg.Redis.LockWait),
		uniqueness.WithFieldKey([]byte(cfg.Redis.FieldKey)),
	), nil
}
