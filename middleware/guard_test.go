package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	driveauth "github.com/weisiqian3/driveauth"
	"github.com/weisiqian3/driveauth/ledger"
	"github.com/weisiqian3/driveauth/middleware"
	"github.com/weisiqian3/driveauth/password"
)

type singleUser struct {
	user driveauth.UserRecord
}

func (s singleUser) GetUserByEmail(_ context.Context, email string) (driveauth.UserRecord, error) {
	if email != s.user.Email {
		return driveauth.UserRecord{}, fmt.Errorf("no user %q", email)
	}
	return s.user, nil
}

func (s singleUser) GetUserByID(_ context.Context, id int64) (driveauth.UserRecord, error) {
	if id != s.user.ID {
		return driveauth.UserRecord{}, fmt.Errorf("no user %d", id)
	}
	return s.user, nil
}

func newGuardedEngine(t *testing.T, level int) (*driveauth.Engine, string) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store, err := ledger.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}

	params := password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hasher, err := password.NewHasher(params)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	hash, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	cfg := driveauth.DefaultConfig()
	cfg.Password = params
	engine, err := driveauth.New().
		WithRedis(rdb).
		WithLedger(store).
		WithUserProvider(singleUser{driveauth.UserRecord{ID: 7, Email: "dana@example.com", PasswordHash: hash, AuthorizationLevel: level}}).
		WithConfig(cfg).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	res, err := engine.Login(context.Background(), "dana@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return engine, res.Token
}

func TestGuardInjectsIdentity(t *testing.T) {
	engine, token := newGuardedEngine(t, driveauth.LevelUser)

	var seen *driveauth.Identity
	handler := middleware.Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = middleware.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/api/files", nil)
	req.AddCookie(&http.Cookie{Name: engine.CookieName(), Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen == nil || seen.UserID != 7 || seen.Email != "dana@example.com" {
		t.Fatalf("identity = %+v", seen)
	}
}

func TestGuardRejectsMissingAndBogusCookies(t *testing.T) {
	engine, _ := newGuardedEngine(t, driveauth.LevelUser)

	handler := middleware.Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a session")
	}))

	for _, setup := range []func(*http.Request){
		func(r *http.Request) {},
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: engine.CookieName(), Value: "forged"})
		},
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "other_cookie", Value: "x"})
		},
	} {
		req := httptest.NewRequest("GET", "/api/files", nil)
		setup(req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	}
}

func TestGuardStopsAfterLogout(t *testing.T) {
	engine, token := newGuardedEngine(t, driveauth.LevelUser)

	handler := middleware.Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/api/files", nil)
	req.AddCookie(&http.Cookie{Name: engine.CookieName(), Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("pre-logout status = %d", rec.Code)
	}

	if err := engine.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("post-logout status = %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	engine, token := newGuardedEngine(t, driveauth.LevelUser)

	handler := middleware.Guard(engine)(middleware.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest("GET", "/api/admin", nil)
	req.AddCookie(&http.Cookie{Name: engine.CookieName(), Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", rec.Code)
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	engine, token := newGuardedEngine(t, driveauth.LevelUser)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/login", nil)
	middleware.SetSessionCookie(rec, req, engine, token, time.Now().Add(engine.SessionTTL()))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies", len(cookies))
	}
	c := cookies[0]
	if c.Name != engine.CookieName() || c.Value != token {
		t.Fatalf("cookie = %+v", c)
	}
	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Fatalf("cookie attributes = %+v", c)
	}
	if c.Secure {
		t.Fatal("Secure set on a non-TLS request")
	}
	if c.MaxAge <= 0 {
		t.Fatalf("MaxAge = %d", c.MaxAge)
	}

	rec = httptest.NewRecorder()
	middleware.ClearSessionCookie(rec, req, engine)
	cookies = rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 || cookies[0].Value != "" {
		t.Fatalf("clear cookie = %+v", cookies)
	}
}
