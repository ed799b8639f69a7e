package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JoseTor101/mom-middleware/pkg/types"
)

// RedisStore implements Store on a Redis-compatible server.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the coordination store at addr (host:port).
func NewRedisStore(addr string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisStore{client: client}
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", types.ErrInternal, key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", types.ErrInternal, key, err)
	}
	return nil
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: setnx %s: %v", types.ErrInternal, key, err)
	}
	return ok, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", types.ErrInternal, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", types.ErrInternal, key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: keys %s: %v", types.ErrInternal, pattern, err)
	}
	return keys, nil
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SAdd(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: sadd %s: %v", types.ErrInternal, key, err)
	}
	return nil
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: srem %s: %v", types.ErrInternal, key, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers %s: %v", types.ErrInternal, key, err)
	}
	return members, nil
}

func (s *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("%w: sismember %s: %v", types.ErrInternal, key, err)
	}
	return ok, nil
}

func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := s.client.RPush(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: rpush %s: %v", types.ErrInternal, key, err)
	}
	return nil
}

func (s *RedisStore) LPop(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: lpop %s: %v", types.ErrInternal, key, err)
	}
	return val, true, nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: lrange %s: %v", types.ErrInternal, key, err)
	}
	return vals, nil
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: llen %s: %v", types.ErrInternal, key, err)
	}
	return n, nil
}

// releaseScript deletes the lock key only while we still hold it, so a
// holder whose TTL lapsed cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisLock struct {
	client *redis.Client
	name   string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.name}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: release lock %s: %v", types.ErrInternal, l.name, err)
	}
	return nil
}

func (s *RedisStore) AcquireLock(ctx context.Context, name string, ttl time.Duration) (Lock, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: acquire lock %s: %v", types.ErrInternal, name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLock{client: s.client, name: name, token: token}, true, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
