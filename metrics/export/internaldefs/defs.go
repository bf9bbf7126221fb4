package internaldefs

import (
	driveauth "github.com/weisiqian3/driveauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   driveauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   driveauth.MetricID
	Name string
	Help string
}

// CounterDefs is the shared counter naming table used by every
// exporter, so Prometheus and OTel agree on names.
var CounterDefs = []CounterDef{
	{ID: driveauth.MetricLoginSuccess, Name: "driveauth_login_success_total", Help: "Successful logins."},
	{ID: driveauth.MetricLoginFailure, Name: "driveauth_login_failure_total", Help: "Failed login attempts."},
	{ID: driveauth.MetricSessionCreated, Name: "driveauth_session_created_total", Help: "Issued sessions."},
	{ID: driveauth.MetricSessionInvalidated, Name: "driveauth_session_invalidated_total", Help: "Sessions ended by logout or revoke-all."},
	{ID: driveauth.MetricDigestConflictRetry, Name: "driveauth_digest_conflict_retry_total", Help: "Token digest collisions retried during login."},
	{ID: driveauth.MetricResolveSuccess, Name: "driveauth_resolve_success_total", Help: "Resolves that produced an identity."},
	{ID: driveauth.MetricResolveDenied, Name: "driveauth_resolve_denied_total", Help: "Resolves denied for any reason."},
	{ID: driveauth.MetricResolveCacheHit, Name: "driveauth_resolve_cache_hit_total", Help: "Resolves served from the identity cache."},
	{ID: driveauth.MetricResolveCacheMiss, Name: "driveauth_resolve_cache_miss_total", Help: "Resolves that fell through to the ledger."},
	{ID: driveauth.MetricResolveRevoked, Name: "driveauth_resolve_revoked_total", Help: "Resolves denied by the revocation authority."},
	{ID: driveauth.MetricAuthorityFailOpen, Name: "driveauth_authority_fail_open_total", Help: "Resolves that proceeded without a revocation answer."},
	{ID: driveauth.MetricCacheDegraded, Name: "driveauth_cache_degraded_total", Help: "Cache operations that degraded to the memory tier."},
	{ID: driveauth.MetricLogout, Name: "driveauth_logout_total", Help: "Logout operations."},
	{ID: driveauth.MetricRevokeAll, Name: "driveauth_revoke_all_total", Help: "Revoke-all operations."},
}

// HistogramDefs is the shared histogram naming table.
var HistogramDefs = []HistogramDef{
	{ID: driveauth.MetricResolveLatency, Name: "driveauth_resolve_latency_seconds", Help: "Resolve latency."},
}

// HistogramBounds are the bucket upper bounds as Prometheus `le` label
// values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the same bounds as metric-name-safe
// suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// CumulativeBuckets converts per-bucket counts into the cumulative
// form Prometheus histograms use.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
