package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps transport or Redis failures. Callers decide the
// policy: resolve fails open on it, logout fails the whole operation.
var ErrUnavailable = errors.New("revocation authority unavailable")

// DefaultKeyPrefix prefixes every revocation record key.
const DefaultKeyPrefix = "revoked:"

// revokeScript upserts a revocation record, keeping the larger of the
// stored and requested expiries. The record's own Redis TTL tracks the
// expiry, so Redis reclaims it even if no read ever touches it again.
var revokeScript = redis.NewScript(`
local deadline = tonumber(ARGV[1])
local current = tonumber(redis.call("GET", KEYS[1]))
if current and current >= deadline then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PXAT", ARGV[1])
return 1
`)

// Store is the Redis-backed revocation record set.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore builds a Store. An empty prefix falls back to
// DefaultKeyPrefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(digest string) string {
	return s.prefix + digest
}

// Revoke records that digest is revoked until untilMs. Repeating the
// call is a no-op; a shorter expiry never shrinks an existing window.
func (s *Store) Revoke(ctx context.Context, digest string, untilMs int64) error {
	if digest == "" {
		return errors.New("revoke: empty token digest")
	}
	if untilMs <= 0 {
		return fmt.Errorf("revoke: invalid expiry %d", untilMs)
	}
	if untilMs <= time.Now().UnixMilli() {
		// Already in the past; nothing to record.
		return nil
	}
	err := revokeScript.Run(ctx, s.redis, []string{s.key(digest)}, untilMs).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Check reports whether digest is revoked at nowMs and, if so, until
// when. Expired or unparseable records are deleted on the way out.
func (s *Store) Check(ctx context.Context, digest string, nowMs int64) (bool, int64, error) {
	val, err := s.redis.Get(ctx, s.key(digest)).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	until, perr := strconv.ParseInt(val, 10, 64)
	if perr != nil || until <= nowMs {
		_ = s.redis.Del(ctx, s.key(digest)).Err()
		return false, 0, nil
	}
	return true, until, nil
}

// IsRevoked is Check without the expiry.
func (s *Store) IsRevoked(ctx context.Context, digest string, nowMs int64) (bool, error) {
	revoked, _, err := s.Check(ctx, digest, nowMs)
	return revoked, err
}
