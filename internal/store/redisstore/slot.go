// Package redisstore implements the session-scoped conversation slot on
// Redis. Entries carry a TTL so abandoned capture sessions age out.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crowsupport/chatbridge/internal/conversation"
)

const keyPrefix = "conv:session:"

type Slot struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Slot {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Slot{rdb: rdb, ttl: ttl}
}

// NewWithClient wraps an existing client; used in tests.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Slot {
	return &Slot{rdb: rdb, ttl: ttl}
}

func (s *Slot) Name() string { return "session" }

func (s *Slot) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, conversation.ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (s *Slot) Put(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, keyPrefix+key, value, s.ttl).Err()
}

func (s *Slot) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}

func (s *Slot) Close() error { return s.rdb.Close() }
