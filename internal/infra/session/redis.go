package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/resilience"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyPrefix namespaces session keys in Redis.
const KeyPrefix = "sellernotes:session:"

// RedisStore keeps sessions in Redis with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// ConnectRedis parses url, opens a client and waits until the server
// answers PING, retrying with backoff.
func ConnectRedis(ctx context.Context, url string, cfg resilience.Config, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	err = resilience.RetryWithBackoff(ctx, cfg, func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not ready", zap.String("addr", opts.Addr), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}

	logger.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}

// Load returns the stored session, or nil when there is none.
func (s *RedisStore) Load(ctx context.Context, key string) (*chatdomain.Session, error) {
	b, err := s.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	sess, err := decode(key, b)
	if err != nil {
		s.logger.Warn("corrupt session in redis",
			zap.String("session", key),
			zap.Int("bytes", len(b)),
			zap.Error(err),
		)
		return nil, err
	}
	return sess, nil
}

// Save writes the session and resets its TTL.
func (s *RedisStore) Save(ctx context.Context, sess *chatdomain.Session) error {
	b, err := encode(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, KeyPrefix+sess.Key, b, s.ttl).Err(); err != nil {
		s.logger.Error("session write failed", zap.String("session", sess.Key), zap.Error(err))
		return fmt.Errorf("redis set %s: %w", sess.Key, err)
	}
	return nil
}

// Delete forgets a session.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable. Used by the readiness probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
