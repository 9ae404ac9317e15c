package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lexdesk/api/internal/store"
)

func newTestCache(t *testing.T) (*Templates, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTemplates(client, 0), mr
}

func TestTemplateCacheRoundTripAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "org_1", "tpl_1"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	tmpl := store.PromptTemplate{ID: "tpl_1", OrganizationID: "org_1", Name: "Demand", Body: "Write {{.client}}", Variables: []string{"client"}}
	if err := c.Set(ctx, tmpl); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, "org_1", "tpl_1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Body != tmpl.Body || len(got.Variables) != 1 {
		t.Fatalf("unexpected cached template %+v", got)
	}
	if ttl := mr.TTL(templateKey("org_1", "tpl_1")); ttl != DefaultTemplateTTL {
		t.Fatalf("expected ttl %s, got %s", DefaultTemplateTTL, ttl)
	}

	mr.FastForward(16 * time.Minute)
	if _, ok, _ := c.Get(ctx, "org_1", "tpl_1"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestTemplateCacheIsScopedAndInvalidated(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, store.PromptTemplate{ID: "tpl_1", OrganizationID: "org_1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "org_2", "tpl_1"); ok {
		t.Fatal("template must not be visible to another organization")
	}
	if err := c.Invalidate(ctx, "org_1", "tpl_1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "org_1", "tpl_1"); ok {
		t.Fatal("expected miss after invalidation")
	}

	mr.Set(templateKey("org_1", "tpl_bad"), "{not json")
	if _, ok, err := c.Get(ctx, "org_1", "tpl_bad"); ok || err != nil {
		t.Fatalf("corrupt entry should read as miss, got ok=%v err=%v", ok, err)
	}
	if mr.Exists(templateKey("org_1", "tpl_bad")) {
		t.Fatal("corrupt entry should be dropped")
	}
}
