// Package driveauth is the session authentication engine for a
// personal object-storage drive service.
//
// Sessions are opaque bearer tokens carried in an HTTP-only cookie and
// keyed everywhere by their SHA-256 digest. The durable ledger (SQL) is
// the source of truth; a two-tier cache (in-process + Redis) absorbs
// the read load with bounded staleness; and a single revocation
// authority, consulted on every resolve before any cache is trusted,
// makes logout effective immediately despite the caches.
//
// Typical wiring:
//
//	store, _ := ledger.Open("sessions.db")
//	engine, err := driveauth.New().
//		WithRedis(rdb).
//		WithLedger(store).
//		WithUserProvider(users).
//		Build()
//
// Resolve, Login, Logout and RevokeAllForUser are the whole public
// surface; middleware.Guard adapts Resolve to net/http.
package driveauth
