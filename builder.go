package driveauth

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/weisiqian3/driveauth/cache"
	"github.com/weisiqian3/driveauth/ledger"
	"github.com/weisiqian3/driveauth/password"
	"github.com/weisiqian3/driveauth/revocation"
)

// Builder assembles an Engine. Redis, the ledger and a user provider
// are required; everything else has defaults.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	ledger    *ledger.Store
	users     UserProvider
	authority RevocationAuthority
	auditSink AuditSink
	built     bool
}

// New starts a Builder with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole config.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the cache tier and, unless
// WithAuthority overrides it, the in-process revocation authority.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLedger sets the session ledger.
func (b *Builder) WithLedger(store *ledger.Store) *Builder {
	b.ledger = store
	return b
}

// WithUserProvider sets the host's user store.
func (b *Builder) WithUserProvider(users UserProvider) *Builder {
	b.users = users
	return b
}

// WithAuthority overrides the revocation authority, typically with a
// revocation.Client pointing at a revocationd instance.
func (b *Builder) WithAuthority(authority RevocationAuthority) *Builder {
	b.authority = authority
	return b
}

// WithAuditSink enables auditing into sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetrics enables counter collection; withLatency additionally
// enables the resolve latency histogram.
func (b *Builder) WithMetrics(withLatency bool) *Builder {
	b.config.Metrics.Enabled = true
	b.config.Metrics.EnableLatencyHistograms = withLatency
	return b
}

// Build validates the configuration and wiring and returns the Engine.
// A Builder is single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderConsumed
	}
	if b.redis == nil {
		return nil, errors.New("driveauth: redis client is required")
	}
	if b.ledger == nil {
		return nil, errors.New("driveauth: session ledger is required")
	}
	if b.users == nil {
		return nil, errors.New("driveauth: user provider is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, fmt.Errorf("driveauth: %w", err)
	}

	authority := b.authority
	if authority == nil {
		authority = revocation.NewStore(b.redis, b.config.Revocation.KeyPrefix)
	}

	engine := &Engine{
		config:    b.config,
		ledger:    b.ledger,
		cache:     cache.New(b.redis, b.config.Cache.MemoryTTL, b.config.Cache.MemoryPromoteTTL),
		authority: authority,
		users:     b.users,
		passwords: hasher,
	}
	if b.config.Metrics.Enabled {
		engine.metrics = NewMetrics(b.config.Metrics.EnableLatencyHistograms)
	}
	if b.config.Audit.Enabled || b.auditSink != nil {
		sink := b.auditSink
		if sink == nil {
			sink = NoOpAuditSink{}
		}
		engine.audit = newAuditDispatcher(sink, b.config.Audit.BufferSize, b.config.Audit.DropIfFull)
	}

	b.built = true
	return engine, nil
}

// PasswordHasher returns a hasher configured like the engine's, for
// host applications that need to hash passwords at registration time.
func (e *Engine) PasswordHasher() *password.Hasher {
	return e.passwords
}
