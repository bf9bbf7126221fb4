package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

func TestCreateAndFindActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := nowMs()

	sess := &Session{
		UserID:      7,
		TokenDigest: "digest-a",
		LoginIP:     "203.0.113.9",
		CreatedAt:   now,
		ExpiresAt:   now + 60_000,
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == 0 {
		t.Fatal("Create did not assign an id")
	}

	got, err := store.FindActive(ctx, "digest-a", now)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if got == nil {
		t.Fatal("FindActive returned nil for live session")
	}
	if got.UserID != 7 || got.TokenDigest != "digest-a" {
		t.Fatalf("wrong row back: %+v", got)
	}
}

func TestFindActiveMissAndExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := nowMs()

	got, err := store.FindActive(ctx, "absent", now)
	if err != nil || got != nil {
		t.Fatalf("miss: got %+v, err %v; want nil, nil", got, err)
	}

	expired := &Session{UserID: 1, TokenDigest: "digest-old", CreatedAt: now - 2000, ExpiresAt: now - 1000}
	if err := store.Create(ctx, expired); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err = store.FindActive(ctx, "digest-old", now)
	if err != nil || got != nil {
		t.Fatalf("expired row resolved: got %+v, err %v", got, err)
	}

	// Exact boundary counts as expired.
	edge := &Session{UserID: 1, TokenDigest: "digest-edge", CreatedAt: now, ExpiresAt: now}
	if err := store.Create(ctx, edge); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err = store.FindActive(ctx, "digest-edge", now)
	if err != nil || got != nil {
		t.Fatalf("boundary row resolved: got %+v, err %v", got, err)
	}

	// The expired rows stay in place for logout to read.
	row, err := store.FindByDigest(ctx, "digest-old")
	if err != nil || row == nil {
		t.Fatalf("expired row purged on read: got %+v, err %v", row, err)
	}
}

func TestCreateDigestConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := nowMs()

	first := &Session{UserID: 1, TokenDigest: "digest-dup", CreatedAt: now, ExpiresAt: now + 1000}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second := &Session{UserID: 2, TokenDigest: "digest-dup", CreatedAt: now, ExpiresAt: now + 1000}
	err := store.Create(ctx, second)
	if !errors.Is(err, ErrDigestConflict) {
		t.Fatalf("duplicate digest: got %v, want ErrDigestConflict", err)
	}

	// The original row must be untouched.
	got, err := store.FindActive(ctx, "digest-dup", now)
	if err != nil || got == nil || got.UserID != 1 {
		t.Fatalf("original row damaged: %+v, err %v", got, err)
	}
}

func TestDeleteByDigestIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := nowMs()

	sess := &Session{UserID: 3, TokenDigest: "digest-del", CreatedAt: now, ExpiresAt: now + 1000}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.DeleteByDigest(ctx, "digest-del"); err != nil {
		t.Fatalf("DeleteByDigest: %v", err)
	}
	if err := store.DeleteByDigest(ctx, "digest-del"); err != nil {
		t.Fatalf("second DeleteByDigest: %v", err)
	}
	got, err := store.FindByDigest(ctx, "digest-del")
	if err != nil || got != nil {
		t.Fatalf("row survived delete: %+v, err %v", got, err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := nowMs()

	for i, digest := range []string{"u9-a", "u9-b", "u9-c"} {
		sess := &Session{UserID: 9, TokenDigest: digest, CreatedAt: now, ExpiresAt: now + int64(i+1)*1000}
		if err := store.Create(ctx, sess); err != nil {
			t.Fatalf("Create %s: %v", digest, err)
		}
	}
	other := &Session{UserID: 10, TokenDigest: "u10-a", CreatedAt: now, ExpiresAt: now + 1000}
	if err := store.Create(ctx, other); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	removed, err := store.DeleteAllForUser(ctx, 9)
	if err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("removed %d rows, want 3", len(removed))
	}
	for _, r := range removed {
		if r.UserID != 9 || r.ExpiresAt == 0 {
			t.Fatalf("removed row missing fields: %+v", r)
		}
	}

	// Unrelated user untouched, target user emptied.
	if got, _ := store.FindActive(ctx, "u10-a", now); got == nil {
		t.Fatal("unrelated user's session was deleted")
	}
	for _, digest := range []string{"u9-a", "u9-b", "u9-c"} {
		if got, _ := store.FindByDigest(ctx, digest); got != nil {
			t.Fatalf("row %s survived DeleteAllForUser", digest)
		}
	}

	// No sessions is a no-op, not an error.
	removed, err = store.DeleteAllForUser(ctx, 9)
	if err != nil || len(removed) != 0 {
		t.Fatalf("second DeleteAllForUser: %d rows, err %v", len(removed), err)
	}
}

func TestPurgeExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := nowMs()

	live := &Session{UserID: 1, TokenDigest: "live", CreatedAt: now, ExpiresAt: now + 1000}
	dead := &Session{UserID: 1, TokenDigest: "dead", CreatedAt: now - 2000, ExpiresAt: now - 1000}
	for _, s := range []*Session{live, dead} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := store.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d rows, want 1", n)
	}
	if got, _ := store.FindByDigest(ctx, "live"); got == nil {
		t.Fatal("live row purged")
	}
	if got, _ := store.FindByDigest(ctx, "dead"); got != nil {
		t.Fatal("dead row survived purge")
	}
}
