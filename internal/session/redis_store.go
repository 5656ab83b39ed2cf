// Package session keeps refresh sessions in Redis so they expire on their own.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"symposium/api/internal/store"
)

// DefaultTTL applies when a session is saved with an expiry in the past.
const DefaultTTL = 30 * 24 * time.Hour

const (
	keyPrefix      = "symposium:refresh:"
	fieldUserID    = "user_id"
	fieldCreatedAt = "created_at"
)

// RedisStore keeps one hash per refresh token hash, expiring with the token.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore dials redisURL and fails unless the server answers a ping.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

func sessionKey(tokenHash string) string {
	return keyPrefix + tokenHash
}

// SaveRefreshSession writes the session and its expiry in one transaction.
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	now := s.now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := sessionKey(tokenHash)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, strconv.FormatInt(userID, 10),
			fieldCreatedAt, now.UTC().Format(time.RFC3339),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// LookupRefreshSession resolves a live session to its owner. Only the user id
// is populated.
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	raw, err := s.client.HGet(ctx, sessionKey(tokenHash), fieldUserID).Result()
	if errors.Is(err, redis.Nil) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return store.User{}, fmt.Errorf("corrupt refresh session %q: %w", raw, err)
	}
	return store.User{ID: userID}, nil
}

// RevokeRefreshSession is idempotent.
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, sessionKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
