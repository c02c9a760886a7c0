package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"schoolsite/internal/utils"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by CodeStore reads when the key holds no live value.
var ErrCacheMiss = errors.New("cache miss")

// Key prefixes for the verification flow.
const (
	codeKeyPrefix     = "verify:code:"
	attemptsKeyPrefix = "verify:attempts:"
	throttleKeyPrefix = "verify:throttle:"
	usedKeyPrefix     = "tempkey:used:"
)

// CodeStore is the short-TTL store behind verification codes and key markers.
// Every method is atomic on its own.
type CodeStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	// Take returns the value and deletes it in one step.
	Take(ctx context.Context, key string) (string, error)
	// SetNX stores value only if key is absent and reports whether it stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Incr increments a counter; ttl applies when the counter is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps codes in a process-local TTL LRU.
type MemoryStore struct {
	cache *utils.TTLCache
}

func NewMemoryStore(size int) *MemoryStore {
	return &MemoryStore{cache: utils.NewTTLCache(size)}
}

// NewMemoryStoreWithClock is NewMemoryStore with an injected time source.
func NewMemoryStoreWithClock(size int, now func() time.Time) *MemoryStore {
	return &MemoryStore{cache: utils.NewTTLCache(size).WithClock(now)}
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	return asString(v), nil
}

func (s *MemoryStore) Take(_ context.Context, key string) (string, error) {
	v, ok := s.cache.Take(key)
	if !ok {
		return "", ErrCacheMiss
	}
	return asString(v), nil
}

func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.cache.SetNX(key, value, ttl), nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	return s.cache.Incr(key, ttl), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprint(v)
}

// RedisStore shares codes between instances through Redis.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (s *RedisStore) Take(ctx context.Context, key string) (string, error) {
	v, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
