package driveauth

import (
	"context"
	"time"
)

// Authorization levels. Level 1 is an ordinary account; level 3
// administers the whole drive.
const (
	LevelUser    = 1
	LevelManager = 2
	LevelAdmin   = 3
)

// BootstrapAdminUserID is the account that is always an admin, whatever
// its stored level says. It exists so a fresh install with one user can
// never lock itself out of administration.
const BootstrapAdminUserID int64 = 1

// Identity is the resolved caller attached to a request. It is what the
// cache stores and what middleware injects into the request context.
type Identity struct {
	UserID             int64  `json:"id"`
	Email              string `json:"email"`
	AuthorizationLevel int    `json:"authorizationLevel"`
}

// IsAdmin reports whether the identity may administer the drive.
func (i Identity) IsAdmin() bool {
	return i.AuthorizationLevel >= LevelAdmin
}

// UserRecord is what the host application's user store hands the
// engine. The engine never writes users; account management stays on
// the host's side of the UserProvider boundary.
type UserRecord struct {
	ID                 int64
	Email              string
	PasswordHash       string
	AuthorizationLevel int
}

// UserProvider is the host's user store.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, id int64) (UserRecord, error)
}

// RevocationAuthority is the strong-consistency checkpoint consulted on
// every resolve. revocation.Store and revocation.Client both satisfy it.
type RevocationAuthority interface {
	Revoke(ctx context.Context, tokenDigest string, untilMs int64) error
	IsRevoked(ctx context.Context, tokenDigest string, nowMs int64) (bool, error)
}

// LoginResult is a successful login. Token is the raw bearer token and
// leaves the process only inside the session cookie.
type LoginResult struct {
	Token     string
	Identity  Identity
	ExpiresAt time.Time
}

// identityForUser builds the identity for a user record, applying the
// bootstrap admin override. Every place that constructs an Identity
// must go through here, or the override would depend on which cache
// tier answered.
func identityForUser(u UserRecord) Identity {
	level := u.AuthorizationLevel
	if u.ID == BootstrapAdminUserID {
		level = LevelAdmin
	}
	return Identity{UserID: u.ID, Email: u.Email, AuthorizationLevel: level}
}
