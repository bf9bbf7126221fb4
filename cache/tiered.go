package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis failures. Callers are expected to treat it
// as a cache miss; the cache never gates correctness.
var ErrUnavailable = errors.New("cache unavailable")

const sweepThreshold = 1024

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Tiered is the in-process + Redis cache. The memory tier bounds staleness
// to memTTL even when Redis still holds a longer-lived entry; Redis hits
// are promoted into memory for promoteTTL so hot digests skip the network
// on subsequent reads.
type Tiered struct {
	redis      redis.UniversalClient
	memTTL     time.Duration
	promoteTTL time.Duration

	mu  sync.Mutex
	mem map[string]memoryEntry
}

// New builds a Tiered cache. memTTL caps how long a memory entry lives
// after any write; promoteTTL is the shorter lifetime given to entries
// pulled up from Redis.
func New(client redis.UniversalClient, memTTL, promoteTTL time.Duration) *Tiered {
	return &Tiered{
		redis:      client,
		memTTL:     memTTL,
		promoteTTL: promoteTTL,
		mem:        make(map[string]memoryEntry),
	}
}

// Get returns the cached value for key. A Redis failure is reported as
// (nil, false, err) with err wrapping ErrUnavailable; the memory tier
// keeps serving regardless.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := c.memoryGet(key); ok {
		return v, true, nil
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.memoryPut(key, data, c.promoteTTL)
	return data, true, nil
}

// Put writes value to both tiers. The memory tier gets min(memTTL, ttl);
// Redis gets the full ttl. A non-positive ttl drops the write entirely.
func (c *Tiered) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	memTTL := c.memTTL
	if ttl < memTTL {
		memTTL = ttl
	}
	c.memoryPut(key, value, memTTL)

	if err := c.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key from both tiers. The memory entry goes even when
// Redis is unreachable.
func (c *Tiered) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()

	if err := c.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Tiered) memoryGet(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.mem[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.mem, key)
		return nil, false
	}
	return entry.value, true
}

func (c *Tiered) memoryPut(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.mem) >= sweepThreshold {
		for k, e := range c.mem {
			if now.After(e.expiresAt) {
				delete(c.mem, k)
			}
		}
	}
	c.mem[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
}

// MemoryLen reports the number of live-or-expired entries in the memory
// tier. Test hook.
func (c *Tiered) MemoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mem)
}
