package uniqueness

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"registrar/internal/participant/models"
	"registrar/pkg/platform/sentinel"
)

const (
	defaultKeyPrefix = "registrar:uniqueness"
	defaultLockTTL   = 5 * time.Second
	defaultLockWait  = 2 * time.Second
	lockRetryDelay   = 10 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// claimScript writes index entries only while the caller still holds the
// registration lock. KEYS[1] is the lock, KEYS[2..] the dimension hashes;
// ARGV[1] is the lock token, ARGV[2] the owner id, ARGV[3..] the fields.
var claimScript = redis.NewScript(`
if redis.call("get", KEYS[1]) ~= ARGV[1] then
	return 0
end
for i = 2, #KEYS do
	redis.call("hsetnx", KEYS[i], ARGV[i + 1], ARGV[2])
end
return 1
`)

// Redis stores one hash per dimension (field = composite key, value = owner id).
// HSETNX gives first-writer-wins; Execute serializes registrations across
// processes with a SET NX PX lock released by a compare-and-delete script.
// Writes made inside Execute verify the lock token first, so a holder whose
// lock expired mid-registration fails with ErrLocked instead of racing a new
// holder. The lock is not renewed: the lock TTL must exceed the longest
// expected registration. Keys share a hash tag so the script's keys land in
// one cluster slot.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
	lockTTL   time.Duration
	lockWait  time.Duration
	fieldKey  []byte
}

type RedisOption func(*Redis)

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// WithLockTTL bounds how long a crashed holder can block registrations.
func WithLockTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// WithLockWait bounds how long Execute waits for the lock.
func WithLockWait(wait time.Duration) RedisOption {
	return func(r *Redis) {
		if wait > 0 {
			r.lockWait = wait
		}
	}
}

// WithFieldKey stores hash fields as keyed BLAKE2b-256 digests instead of the
// raw SSN, name, phone or address text. Keys longer than 64 bytes are ignored.
// Changing the key orphans every existing entry.
func WithFieldKey(key []byte) RedisOption {
	return func(r *Redis) {
		if len(key) > 0 && len(key) <= blake2b.Size {
			r.fieldKey = key
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		lockTTL:   defaultLockTTL,
		lockWait:  defaultLockWait,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) hashKey(d Dimension) string {
	return "{" + r.keyPrefix + "}:" + string(d)
}

func (r *Redis) lockKey() string {
	return "{" + r.keyPrefix + "}:lock"
}

func (r *Redis) field(key string) string {
	if r.fieldKey == nil {
		return key
	}
	h, _ := blake2b.New256(r.fieldKey)
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Redis) Lookup(ctx context.Context, d Dimension, key string) (string, bool, error) {
	id, err := r.client.HGet(ctx, r.hashKey(d), r.field(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", d, err)
	}
	return id, true, nil
}

func (r *Redis) Add(ctx context.Context, p models.Person, id string) error {
	pipe := r.client.TxPipeline()
	for _, d := range Dimensions {
		key, ok := Key(d, p)
		if !ok {
			continue
		}
		pipe.HSetNX(ctx, r.hashKey(d), r.field(key), id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("add participant %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Execute(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	token, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// Released even when ctx is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.client, []string{r.lockKey()}, token).Err()
	}()
	return fn(ctx, redisTx{Redis: r, token: token})
}

// redisTx is the Tx handed to Execute callbacks. Lookup reads straight from
// the hashes; Add is fenced by the lock token.
type redisTx struct {
	*Redis
	token string
}

func (t redisTx) Add(ctx context.Context, p models.Person, id string) error {
	keys := []string{t.lockKey()}
	args := []any{t.token, id}
	for _, d := range Dimensions {
		key, ok := Key(d, p)
		if !ok {
			continue
		}
		keys = append(keys, t.hashKey(d))
		args = append(args, t.field(key))
	}
	held, err := claimScript.Run(ctx, t.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("add participant %s: %w", id, err)
	}
	if held == 0 {
		return fmt.Errorf("add participant %s: registration lock expired: %w", id, sentinel.ErrLocked)
	}
	return nil
}

func (r *Redis) acquire(ctx context.Context) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(r.lockWait)
	for {
		ok, err := r.client.SetNX(ctx, r.lockKey(), token, r.lockTTL).Result()
		if err != nil {
			return "", fmt.Errorf("acquire registration lock: %w", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("acquire registration lock: %w", sentinel.ErrLocked)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}
