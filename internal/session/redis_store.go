package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements CredentialStore on Redis. Blacklist entries and
// reset codes carry TTLs matching their own expiry, so Redis prunes
// them without any sweeper.
type RedisStore struct {
	client *redis.Client
}

const (
	revokedPrefix   = "revoked:"
	resetPrefix     = "reset:"
	resetUserPrefix = "resetuser:"
)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("lookup blacklist: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) SaveResetCode(ctx context.Context, code string, userID int, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	userKey := resetUserPrefix + strconv.Itoa(userID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, resetPrefix+code, userID, ttl)
	pipe.SAdd(ctx, userKey, code)
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save reset code: %w", err)
	}
	return nil
}

func (s *RedisStore) ConsumeResetCode(ctx context.Context, code string) (int, error) {
	raw, err := s.client.GetDel(ctx, resetPrefix+code).Result()
	if err == redis.Nil {
		return 0, ErrCodeNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup reset code: %w", err)
	}
	userID, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decode reset code owner: %w", err)
	}
	_ = s.client.SRem(ctx, resetUserPrefix+raw, code).Err()
	return userID, nil
}

func (s *RedisStore) InvalidateResetCodes(ctx context.Context, userID int) error {
	userKey := resetUserPrefix + strconv.Itoa(userID)
	codes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list reset codes: %w", err)
	}
	for _, code := range codes {
		if err := s.client.Del(ctx, resetPrefix+code).Err(); err != nil {
			return fmt.Errorf("delete reset code: %w", err)
		}
	}
	if err := s.client.Del(ctx, userKey).Err(); err != nil {
		return fmt.Errorf("delete reset code index: %w", err)
	}
	return nil
}

// Reset flushes all blacklist entries and reset codes.
func (s *RedisStore) Reset(ctx context.Context) error {
	for _, prefix := range []string{revokedPrefix, resetPrefix, resetUserPrefix} {
		iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("delete key: %w", err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan keys: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
