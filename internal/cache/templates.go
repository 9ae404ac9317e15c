// Package cache keeps hot read models in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lexdesk/api/internal/store"
)

const DefaultTemplateTTL = 15 * time.Minute

// Templates caches prompt templates per organization.
type Templates struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewTemplates(client redis.UniversalClient, ttl time.Duration) *Templates {
	if ttl <= 0 {
		ttl = DefaultTemplateTTL
	}
	return &Templates{client: client, ttl: ttl}
}

func templateKey(orgID, templateID string) string {
	return "lexdesk:tmpl:" + orgID + ":" + templateID
}

// Get reports a miss as ok=false with a nil error.
func (c *Templates) Get(ctx context.Context, orgID, templateID string) (store.PromptTemplate, bool, error) {
	payload, err := c.client.Get(ctx, templateKey(orgID, templateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.PromptTemplate{}, false, nil
	}
	if err != nil {
		return store.PromptTemplate{}, false, fmt.Errorf("get cached template: %w", err)
	}
	var tmpl store.PromptTemplate
	if err := json.Unmarshal(payload, &tmpl); err != nil {
		c.client.Del(ctx, templateKey(orgID, templateID))
		return store.PromptTemplate{}, false, nil
	}
	return tmpl, true, nil
}

func (c *Templates) Set(ctx context.Context, tmpl store.PromptTemplate) error {
	payload, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	if err := c.client.Set(ctx, templateKey(tmpl.OrganizationID, tmpl.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache template: %w", err)
	}
	return nil
}

func (c *Templates) Invalidate(ctx context.Context, orgID, templateID string) error {
	if err := c.client.Del(ctx, templateKey(orgID, templateID)).Err(); err != nil {
		return fmt.Errorf("invalidate template: %w", err)
	}
	return nil
}
