package store

import (
	"context"
	"time"
)

// Store is the shared coordination store the cluster state and message
// payloads live in. Implementations must provide atomic single-key
// semantics; no cross-key transaction is ever attempted.
type Store interface {
	// Strings
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Sets
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// Lists (message queues); append-to-tail, pop-from-head
	RPush(ctx context.Context, key string, values ...string) error
	LPop(ctx context.Context, key string) (string, bool, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)

	// AcquireLock attempts to take the named advisory lock without
	// blocking. It returns (nil, false, nil) when another holder owns it.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (Lock, bool, error)

	Close() error
}

// Lock is a held advisory lock. Release is safe to call once; releasing a
// lock that already expired is not an error.
type Lock interface {
	Release(ctx context.Context) error
}
