package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carolinuci/spacetime-crawler/internal/config"
)

const (
	defaultKeyPrefix    = "spacetime:"
	defaultRedisTimeout = 2 * time.Second
	connectTimeout      = 5 * time.Second
)

// ErrEmptyAddress is returned when the redis backend has no address.
var ErrEmptyAddress = errors.New("redis address is required")

// Redis stores both sets as Redis sets so several crawler processes can
// share one ledger. SADD reports 1 exactly once per member, which gives the
// same test-and-insert guarantee as Memory.
type Redis struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	owned   bool
}

// DialRedis connects to Redis and verifies the connection.
func DialRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	l := NewRedis(client, cfg.KeyPrefix, cfg.Timeout.Duration)
	l.owned = true
	return l, nil
}

// NewRedis wraps an existing client. The caller keeps ownership of client.
func NewRedis(client *redis.Client, prefix string, timeout time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	return &Redis{client: client, prefix: prefix, timeout: timeout}
}

func (r *Redis) urlsKey() string         { return r.prefix + "visited" }
func (r *Redis) fingerprintsKey() string { return r.prefix + "fingerprints" }

// Seen reports whether url was marked.
func (r *Redis) Seen(ctx context.Context, url string) (bool, error) {
	return r.isMember(ctx, r.urlsKey(), url)
}

// MarkSeen inserts url and reports whether it was absent.
func (r *Redis) MarkSeen(ctx context.Context, url string) (bool, error) {
	return r.add(ctx, r.urlsKey(), url)
}

// IsDuplicate reports whether fingerprint was recorded.
func (r *Redis) IsDuplicate(ctx context.Context, fingerprint string) (bool, error) {
	return r.isMember(ctx, r.fingerprintsKey(), fingerprint)
}

// RecordFingerprint inserts fingerprint and reports whether it was absent.
func (r *Redis) RecordFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	return r.add(ctx, r.fingerprintsKey(), fingerprint)
}

// Stats reports the cardinality of both sets.
func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pipe := r.client.Pipeline()
	urls := pipe.SCard(ctx, r.urlsKey())
	fps := pipe.SCard(ctx, r.fingerprintsKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("redis ledger stats: %w", err)
	}
	return Stats{URLs: urls.Val(), Fingerprints: fps.Val()}, nil
}

// Close releases the client when the ledger dialled it.
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) add(ctx context.Context, key, member string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	added, err := r.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd %s: %w", key, err)
	}
	return added == 1, nil
}

func (r *Redis) isMember(ctx context.Context, key, member string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ok, err := r.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember %s: %w", key, err)
	}
	return ok, nil
}
