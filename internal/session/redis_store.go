// Package session stores refresh tokens in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("refresh session not found or expired")

// Session is what a refresh token resolves to. Tokens are stored by hash only.
type Session struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	DisplayName    string    `json:"display_name"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "lexdesk:refresh:"}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

// Save stores the session under tokenHash until expiresAt and indexes it by user
// so RevokeUser can drop every session of a deactivated account.
func (s *RedisStore) Save(ctx context.Context, tokenHash string, session Session, expiresAt time.Time) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(tokenHash), payload, ttl)
	pipe.SAdd(ctx, s.userKey(session.UserID), tokenHash)
	pipe.Expire(ctx, s.userKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, tokenHash string) (Session, error) {
	payload, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return decode(payload)
}

// Consume atomically reads and deletes the session, so a refresh token can be
// redeemed exactly once.
func (s *RedisStore) Consume(ctx context.Context, tokenHash string) (Session, error) {
	payload, err := s.client.GetDel(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("consume refresh session: %w", err)
	}
	session, err := decode(payload)
	if err != nil {
		return Session{}, err
	}
	s.client.SRem(ctx, s.userKey(session.UserID), tokenHash)
	return session, nil
}

func (s *RedisStore) Revoke(ctx context.Context, tokenHash string) error {
	if _, err := s.Consume(ctx, tokenHash); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// RevokeUser deletes every refresh session issued to the user.
func (s *RedisStore) RevokeUser(ctx context.Context, userID string) error {
	hashes, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, s.key(hash))
	}
	keys = append(keys, s.userKey(userID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decode(payload []byte) (Session, error) {
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.Role == "" {
		session.Role = "viewer"
	}
	return session, nil
}
