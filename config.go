package driveauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weisiqian3/driveauth/password"
)

// Config carries all tunables. Zero value is not usable; start from
// DefaultConfig and override.
type Config struct {
	Session    SessionConfig
	Cache      CacheConfig
	Revocation RevocationConfig
	Password   password.Params
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// SessionConfig governs issued sessions.
type SessionConfig struct {
	// CookieName is the session cookie the middleware reads and the
	// helpers write.
	CookieName string

	// TTL is the issued session lifetime, and the revocation window
	// used when a session's expiry can no longer be read back.
	TTL time.Duration

	// DigestRetries bounds how often Login retries token generation on
	// a ledger digest conflict.
	DigestRetries int
}

// CacheConfig governs the tiered identity cache.
type CacheConfig struct {
	// KeyVersion versions the cache key layout. Bumping it orphans all
	// existing entries, which is the cheapest cache flush there is.
	KeyVersion string

	// TTLCeiling caps the Redis-tier entry lifetime. Entries never
	// outlive the session's remaining lifetime either.
	TTLCeiling time.Duration

	// MemoryTTL caps the in-process tier entry lifetime.
	MemoryTTL time.Duration

	// MemoryPromoteTTL is the shorter lifetime for entries promoted
	// from Redis into the in-process tier.
	MemoryPromoteTTL time.Duration
}

// RevocationConfig governs the authority integration.
type RevocationConfig struct {
	// KeyPrefix prefixes revocation record keys when the default
	// in-process authority is used.
	KeyPrefix string

	// CheckTimeout bounds the per-resolve revocation check. On timeout
	// the resolve proceeds fail-open.
	CheckTimeout time.Duration
}

// AuditConfig governs the async audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the buffer is full instead of
	// blocking the request path. Drops are counted.
	DropIfFull bool
}

// MetricsConfig governs in-process metrics collection.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms additionally records the resolve latency
	// histogram.
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 30-day sessions,
// 30s/5s cache tiers, 500ms revocation check budget.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			CookieName:    "drive_session",
			TTL:           30 * 24 * time.Hour,
			DigestRetries: 3,
		},
		Cache: CacheConfig{
			KeyVersion:       "v1",
			TTLCeiling:       30 * time.Second,
			MemoryTTL:        5 * time.Second,
			MemoryPromoteTTL: 3 * time.Second,
		},
		Revocation: RevocationConfig{
			KeyPrefix:    "revoked:",
			CheckTimeout: 500 * time.Millisecond,
		},
		Password: password.DefaultParams(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{},
	}
}

// Validate checks the config for values the engine cannot run with.
func (c Config) Validate() error {
	var problems []string

	if c.Session.CookieName == "" {
		problems = append(problems, "Session.CookieName is empty")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "Session.TTL must be positive")
	}
	if c.Session.DigestRetries < 1 {
		problems = append(problems, "Session.DigestRetries must be at least 1")
	}
	if c.Cache.KeyVersion == "" || strings.Contains(c.Cache.KeyVersion, ":") {
		problems = append(problems, "Cache.KeyVersion must be non-empty and colon-free")
	}
	if c.Cache.TTLCeiling <= 0 {
		problems = append(problems, "Cache.TTLCeiling must be positive")
	}
	if c.Cache.MemoryTTL <= 0 || c.Cache.MemoryTTL > c.Cache.TTLCeiling {
		problems = append(problems, "Cache.MemoryTTL must be positive and not exceed Cache.TTLCeiling")
	}
	if c.Cache.MemoryPromoteTTL <= 0 || c.Cache.MemoryPromoteTTL > c.Cache.MemoryTTL {
		problems = append(problems, "Cache.MemoryPromoteTTL must be positive and not exceed Cache.MemoryTTL")
	}
	if c.Revocation.CheckTimeout <= 0 {
		problems = append(problems, "Revocation.CheckTimeout must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		problems = append(problems, "Audit.BufferSize must be at least 1 when audit is enabled")
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// cacheKey builds the versioned cache key for a token digest.
func (c Config) cacheKey(digest string) string {
	return fmt.Sprintf("%s:sess-user:%s", c.Cache.KeyVersion, digest)
}
