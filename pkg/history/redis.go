// Redis-backed sent-recipient store
package history

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
)

const keyPrefix = "sendhub:history:"

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	// TTL bounds how long a run's sent set lives. Zero keeps it forever.
	TTL time.Duration `json:"ttl"`
}

// RedisStore is a Store backed by a Redis set per run key, so reruns of the
// same dispatch (same run key) skip recipients already reached, even across
// processes and hosts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, log logger.Logger) (*RedisStore, error) {
	if log == nil {
		log = logger.Discard
	}
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrInvalidConfig, "redis history store requires an address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrHistoryUnavailable, "failed to connect to redis")
	}

	log.Info("Redis history store connected", "addr", cfg.Addr, "db", cfg.DB)
	return &RedisStore{client: client, ttl: cfg.TTL, logger: log}, nil
}

// Seen reports whether the recipient is in the run's sent set.
func (s *RedisStore) Seen(ctx context.Context, runKey, recipientID string) (bool, error) {
	seen, err := s.client.SIsMember(ctx, keyPrefix+runKey, recipientID).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrHistoryUnavailable, "failed to check sent set")
	}
	return seen, nil
}

// MarkSent adds the recipient to the run's sent set and refreshes the TTL.
func (s *RedisStore) MarkSent(ctx context.Context, runKey, recipientID string) error {
	key := keyPrefix + runKey
	if err := s.client.SAdd(ctx, key, recipientID).Err(); err != nil {
		return errors.Wrap(err, errors.ErrHistoryUnavailable, "failed to record sent recipient")
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			s.logger.Warn("Failed to refresh history TTL", "key", key, "error", err)
		}
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
