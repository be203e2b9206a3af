// Package redisstore backs the gateway's chat document cache with
// redis. Documents expire on a TTL and are deleted eagerly whenever the
// panel writes the chat back to the host.
package redisstore

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const docPrefix = "favpanel:chatdoc:"

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Ping checks connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Get returns the cached document body. Cache errors degrade to a miss;
// the caller refetches from the host.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	body, err := s.rdb.Get(ctx, docPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[redisstore] get %s: %v", key, err)
		}
		return nil, false
	}
	return body, true
}

func (s *Store) Set(ctx context.Context, key string, body []byte) {
	if err := s.rdb.Set(ctx, docPrefix+key, body, s.ttl).Err(); err != nil {
		log.Printf("[redisstore] set %s: %v", key, err)
	}
}

func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, docPrefix+key).Err(); err != nil {
		log.Printf("[redisstore] del %s: %v", key, err)
	}
}
