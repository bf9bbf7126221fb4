package driveauth

import "errors"

var (
	// ErrUnauthenticated is the single answer for every failed resolve:
	// absent, expired and revoked sessions are deliberately
	// indistinguishable to callers.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials is returned by Login for unknown users and
	// wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDigestConflict is returned by Login when token generation kept
	// colliding with existing ledger rows, which in practice means the
	// entropy source is broken.
	ErrDigestConflict = errors.New("token digest conflict")

	// ErrAuthorityUnavailable wraps revocation authority failures on
	// paths where they are not allowed to pass silently (logout,
	// revoke-all).
	ErrAuthorityUnavailable = errors.New("revocation authority unavailable")

	// ErrLedgerUnavailable wraps session ledger failures on write paths.
	ErrLedgerUnavailable = errors.New("session ledger unavailable")

	// ErrEngineNotReady means the engine was used before Build wired a
	// required dependency.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrBuilderConsumed means Build was called twice on one Builder.
	ErrBuilderConsumed = errors.New("builder already consumed")
)
