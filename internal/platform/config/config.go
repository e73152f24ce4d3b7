// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	platformstrings "registrar/pkg/platform/strings"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr             string        `env:"PARTICIPANTS_ADDR" envDefault:":8080"`
	StrictUniqueness bool          `env:"PARTICIPANTS_STRICT_UNIQUENESS" envDefault:"false"`
	ShutdownTimeout  time.Duration `env:"PARTICIPANTS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Log selects the slog handler and level.
type Log struct {
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
}

// EventStore selects the event store backend.
type EventStore struct {
	Backend     string `env:"EVENT_STORE_BACKEND" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// RedisConfig configures the Redis-backed uniqueness index.
type RedisConfig struct {
	Backend      string        `env:"UNIQUENESS_BACKEND" envDefault:"memory"`
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	LockTTL      time.Duration `env:"REDIS_LOCK_TTL" envDefault:"5s"`
	LockWait     time.Duration `env:"REDIS_LOCK_WAIT" envDefault:"2s"`
	// FieldKey, when set, hashes index entries so Redis never holds raw PII.
	FieldKey string `env:"UNIQUENESS_FIELD_KEY"`
}

// Kafka configures the optional event feed. An empty broker list disables it.
type Kafka struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic             string   `env:"KAFKA_TOPIC" envDefault:"participant-events"`
	ClientID          string   `env:"KAFKA_CLIENT_ID" envDefault:"registrar"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
	// DeliveryTimeout bounds how long one event may wait for a broker ack.
	DeliveryTimeout time.Duration `env:"KAFKA_DELIVERY_TIMEOUT" envDefault:"10s"`
}

// Config is the full process configuration.
type Config struct {
	Server     Server
	Log        Log
	EventStore EventStore
	Redis      RedisConfig
	Kafka      Kafka
}

// FromEnv parses and validates configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = platformstrings.CompactHosts(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects backend selections that are missing their connection settings.
func (c Config) Validate() error {
	switch c.EventStore.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.EventStore.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when EVENT_STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown EVENT_STORE_BACKEND %q", c.EventStore.Backend)
	}
	switch c.Redis.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("REDIS_URL is required when UNIQUENESS_BACKEND=redis")
		}
		if len(c.Redis.FieldKey) > 64 {
			return errors.New("UNIQUENESS_FIELD_KEY must be at most 64 bytes")
		}
	default:
		return fmt.Errorf("unknown UNIQUENESS_BACKEND %q", c.Redis.Backend)
	}
	return nil
}

// FeedEnabled reports whether events should be published to Kafka.
func (c Config) FeedEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
