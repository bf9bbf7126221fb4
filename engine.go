package driveauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/weisiqian3/driveauth/cache"
	"github.com/weisiqian3/driveauth/internal"
	"github.com/weisiqian3/driveauth/ledger"
	"github.com/weisiqian3/driveauth/password"
)

// Engine orchestrates the session subsystem: the ledger is the source
// of truth, the tiered cache is a bounded-staleness view of it, and the
// revocation authority closes the staleness window on every resolve.
//
// Build one through Builder.
type Engine struct {
	config    Config
	ledger    *ledger.Store
	cache     *cache.Tiered
	authority RevocationAuthority
	users     UserProvider
	passwords *password.Hasher
	audit     *auditDispatcher
	metrics   *Metrics
}

// Login verifies credentials, issues a fresh session and prewarms the
// cache. Unknown users and wrong passwords are indistinguishable to the
// caller.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}
	ok, err := e.passwords.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(e.config.Session.TTL)

	var digest string
	var createErr error
	for attempt := 0; attempt < e.config.Session.DigestRetries; attempt++ {
		var token string
		token, createErr = internal.NewSessionToken()
		if createErr != nil {
			return nil, fmt.Errorf("issue session: %w", createErr)
		}
		digest = internal.DigestToken(token)
		createErr = e.ledger.Create(ctx, &ledger.Session{
			UserID:         user.ID,
			TokenDigest:    digest,
			LoginIP:        clientIPFromContext(ctx),
			LoginUserAgent: userAgentFromContext(ctx),
			CreatedAt:      now.UnixMilli(),
			ExpiresAt:      expiresAt.UnixMilli(),
		})
		if createErr == nil {
			identity := identityForUser(user)
			// The row is durable; prewarming the cache is now safe.
			e.cacheIdentity(ctx, digest, identity, expiresAt.UnixMilli(), now)
			e.metricInc(MetricLoginSuccess)
			e.metricInc(MetricSessionCreated)
			e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, digest, nil, nil)
			return &LoginResult{Token: token, Identity: identity, ExpiresAt: expiresAt}, nil
		}
		if !errors.Is(createErr, ledger.ErrDigestConflict) {
			wrapped := fmt.Errorf("%w: %v", ErrLedgerUnavailable, createErr)
			e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", wrapped, nil)
			return nil, wrapped
		}
		e.metricInc(MetricDigestConflictRetry)
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrDigestConflict, nil)
	return nil, ErrDigestConflict
}

// Resolve authenticates a raw bearer token and returns the caller's
// identity. Every deny path returns ErrUnauthenticated; callers must
// not be able to tell a revoked session from an absent one.
//
// Order matters: the revocation authority is consulted before any
// cache tier is trusted, so a logout observed by the authority beats
// an identity the cache has not aged out yet.
func (e *Engine) Resolve(ctx context.Context, rawToken string) (*Identity, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(time.Since(start))
		}
	}()

	if rawToken == "" {
		e.metricInc(MetricResolveDenied)
		return nil, ErrUnauthenticated
	}
	digest := internal.DigestToken(rawToken)
	now := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, e.config.Revocation.CheckTimeout)
	revoked, err := e.authority.IsRevoked(checkCtx, digest, now.UnixMilli())
	cancel()
	switch {
	case err != nil:
		// Availability over consistency: the ledger and the cache TTLs
		// still bound how long a dead session can linger.
		e.metricInc(MetricAuthorityFailOpen)
		e.emitAudit(ctx, auditEventAuthorityDegrade, false, 0, digest, ErrAuthorityUnavailable, nil)
		log.Print("driveauth: revocation check failed, resolving without it: ", err)
	case revoked:
		if cerr := e.cache.Delete(ctx, e.config.cacheKey(digest)); cerr != nil {
			e.metricInc(MetricCacheDegraded)
		}
		e.metricInc(MetricResolveRevoked)
		e.metricInc(MetricResolveDenied)
		e.emitAudit(ctx, auditEventResolveRevoked, false, 0, digest, ErrUnauthenticated, nil)
		return nil, ErrUnauthenticated
	}

	if identity := e.cachedIdentity(ctx, digest); identity != nil {
		e.metricInc(MetricResolveCacheHit)
		e.metricInc(MetricResolveSuccess)
		return identity, nil
	}
	e.metricInc(MetricResolveCacheMiss)

	sess, err := e.ledger.FindActive(ctx, digest, now.UnixMilli())
	if err != nil {
		// Source of truth unreachable: fail closed.
		e.metricInc(MetricResolveDenied)
		log.Print("driveauth: ledger lookup failed during resolve: ", err)
		return nil, ErrUnauthenticated
	}
	if sess == nil {
		e.metricInc(MetricResolveDenied)
		return nil, ErrUnauthenticated
	}

	user, err := e.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		e.metricInc(MetricResolveDenied)
		return nil, ErrUnauthenticated
	}

	identity := identityForUser(user)
	e.cacheIdentity(ctx, digest, identity, sess.ExpiresAt, now)
	e.metricInc(MetricResolveSuccess)
	return &identity, nil
}

// Logout ends the session for rawToken. The ledger row goes first, then
// the cache entry, and the revocation is recorded last and
// unconditionally, so caches elsewhere cannot resurrect the session.
// If the row is already gone the revocation window falls back to a full
// session lifetime from now.
func (e *Engine) Logout(ctx context.Context, rawToken string) error {
	if e == nil || e.authority == nil {
		return ErrEngineNotReady
	}
	if rawToken == "" {
		return nil
	}
	digest := internal.DigestToken(rawToken)
	now := time.Now()

	untilMs := now.Add(e.config.Session.TTL).UnixMilli()
	var userID int64
	sess, err := e.ledger.FindByDigest(ctx, digest)
	if err == nil && sess != nil {
		untilMs = sess.ExpiresAt
		userID = sess.UserID
	}

	delErr := e.ledger.DeleteByDigest(ctx, digest)
	if cerr := e.cache.Delete(ctx, e.config.cacheKey(digest)); cerr != nil {
		e.metricInc(MetricCacheDegraded)
	}

	if rerr := e.authority.Revoke(ctx, digest, untilMs); rerr != nil {
		wrapped := fmt.Errorf("%w: %v", ErrAuthorityUnavailable, rerr)
		e.emitAudit(ctx, auditEventLogout, false, userID, digest, wrapped, nil)
		return wrapped
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogout, true, userID, digest, nil, nil)
	if delErr != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, delErr)
	}
	return nil
}

// RevokeAllForUser ends every session belonging to userID. When it
// returns nil, every removed digest has been revoked at the authority;
// a partial failure reports the digests that could not be revoked and
// leaves the rest revoked.
func (e *Engine) RevokeAllForUser(ctx context.Context, userID int64) error {
	if e == nil || e.authority == nil {
		return ErrEngineNotReady
	}
	removed, err := e.ledger.DeleteAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	var errs []error
	for i := range removed {
		sess := &removed[i]
		if cerr := e.cache.Delete(ctx, e.config.cacheKey(sess.TokenDigest)); cerr != nil {
			e.metricInc(MetricCacheDegraded)
		}
		if rerr := e.authority.Revoke(ctx, sess.TokenDigest, sess.ExpiresAt); rerr != nil {
			errs = append(errs, fmt.Errorf("%w: revoke %s: %v", ErrAuthorityUnavailable, sess.TokenDigest, rerr))
			continue
		}
		e.metricInc(MetricSessionInvalidated)
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, len(errs) == 0, userID, "", errors.Join(errs...), map[string]string{
		"sessions": fmt.Sprintf("%d", len(removed)),
	})
	return errors.Join(errs...)
}

func (e *Engine) cacheIdentity(ctx context.Context, digest string, identity Identity, expiresAtMs int64, now time.Time) {
	ttl := e.config.Cache.TTLCeiling
	if remaining := time.Duration(expiresAtMs-now.UnixMilli()) * time.Millisecond; remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := e.cache.Put(ctx, e.config.cacheKey(digest), data, ttl); err != nil {
		e.metricInc(MetricCacheDegraded)
	}
}

func (e *Engine) cachedIdentity(ctx context.Context, digest string) *Identity {
	data, ok, err := e.cache.Get(ctx, e.config.cacheKey(digest))
	if err != nil {
		e.metricInc(MetricCacheDegraded)
		return nil
	}
	if !ok {
		return nil
	}
	var identity Identity
	if json.Unmarshal(data, &identity) != nil {
		return nil
	}
	// A mangled entry is a miss, not an authenticated nobody.
	if identity.UserID <= 0 || identity.Email == "" {
		return nil
	}
	return &identity
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// CookieName returns the configured session cookie name.
func (e *Engine) CookieName() string {
	return e.config.Session.CookieName
}

// SessionTTL returns the issued session lifetime.
func (e *Engine) SessionTTL() time.Duration {
	return e.config.Session.TTL
}

// MetricsSnapshot returns a copy of the current metrics, or the zero
// snapshot when collection is disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// DroppedAuditEvents reports how many audit events were dropped by the
// dispatcher.
func (e *Engine) DroppedAuditEvents() uint64 {
	return e.audit.Dropped()
}

// Close drains the audit pipeline. The engine must not be used after
// Close.
func (e *Engine) Close() {
	e.audit.Close()
}
