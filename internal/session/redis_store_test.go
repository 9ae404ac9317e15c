package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func testSession(userID string) Session {
	return Session{UserID: userID, OrganizationID: "org_1", DisplayName: "Ada", Role: "attorney"}
}

func TestSaveAndLookup(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, "hash-1", testSession("usr_1"), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Lookup(ctx, "hash-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.UserID != "usr_1" || got.OrganizationID != "org_1" || got.Role != "attorney" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be stamped")
	}
}

func TestLookupExpiredSession(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, "hash-1", testSession("usr_1"), time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.Lookup(ctx, "hash-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, "hash-1", testSession("usr_1"), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Consume(ctx, "hash-1"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := store.Consume(ctx, "hash-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected replayed token to be rejected, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Revoke(ctx, "missing"); err != nil {
		t.Fatalf("revoke missing: %v", err)
	}
	if err := store.Save(ctx, "hash-1", testSession("usr_1"), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Revoke(ctx, "hash-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.Lookup(ctx, "hash-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected revoked session to be gone, got %v", err)
	}
}

func TestRevokeUserLeavesOtherUsers(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	for hash, user := range map[string]string{"a1": "usr_a", "a2": "usr_a", "b1": "usr_b"} {
		if err := store.Save(ctx, hash, testSession(user), expires); err != nil {
			t.Fatalf("save %s: %v", hash, err)
		}
	}
	if err := store.RevokeUser(ctx, "usr_a"); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	for _, hash := range []string{"a1", "a2"} {
		if _, err := store.Lookup(ctx, hash); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected %s revoked, got %v", hash, err)
		}
	}
	if _, err := store.Lookup(ctx, "b1"); err != nil {
		t.Fatalf("expected b1 to survive: %v", err)
	}
}
