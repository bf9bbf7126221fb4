package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/weisiqian3/driveauth"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity Guard attached to the
// request context.
func IdentityFromContext(ctx context.Context) (*driveauth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*driveauth.Identity)
	return identity, ok
}

// Guard resolves the session cookie on every request. Requests without
// a valid session get a plain 401; the response never says whether the
// cookie was absent, expired or revoked.
func Guard(engine *driveauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestContext(r)
			var token string
			if cookie, err := r.Cookie(engine.CookieName()); err == nil {
				token = cookie.Value
			}
			identity, err := engine.Resolve(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx = context.WithValue(ctx, identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin wraps a handler that only admins may reach. It must run
// inside Guard.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie writes the session cookie for a fresh login:
// HTTP-only, SameSite=Lax, Secure on TLS, max-age from the expiry.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, engine *driveauth.Engine, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     engine.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter, r *http.Request, engine *driveauth.Engine) {
	http.SetCookie(w, &http.Cookie{
		Name:     engine.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

// requestContext copies the caller's IP and user agent into the
// context for the engine's advisory fields.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	if ip != "" {
		ctx = driveauth.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = driveauth.WithUserAgent(ctx, ua)
	}
	return ctx
}
