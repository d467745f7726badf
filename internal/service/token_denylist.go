package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist guarda los jti de tokens de sesión revocados hasta que expiran.
type TokenDenylist interface {
	Revoke(jti string, ttl time.Duration) error
	IsRevoked(jti string) (bool, error)
}

type memoryTokenDenylist struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewMemoryTokenDenylist() TokenDenylist {
	return &memoryTokenDenylist{
		items: make(map[string]time.Time),
	}
}

func (s *memoryTokenDenylist) Revoke(jti string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for k, exp := range s.items {
		if now.After(exp) {
			delete(s.items, k)
		}
	}
	s.items[jti] = now.Add(ttl)
	return nil
}

func (s *memoryTokenDenylist) IsRevoked(jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[jti]
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(exp) {
		delete(s.items, jti)
		return false, nil
	}
	return true, nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisTokenDenylist struct {
	client redisKVClient
	prefix string
}

func NewRedisTokenDenylist(client *redis.Client) TokenDenylist {
	if client == nil {
		return nil
	}
	return &redisTokenDenylist{
		client: client,
		prefix: "auth:revoked:",
	}
}

func (s *redisTokenDenylist) Revoke(jti string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+jti, 1, ttl).Err()
}

func (s *redisTokenDenylist) IsRevoked(jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
