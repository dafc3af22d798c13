package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"matterguard/authcore/internal/session/domain"
)

const defaultRedisPrefix = "mg:sessions:"

// RedisStore persists sessions in Redis. Each session is a JSON value under
// <prefix>id:<hash> with a TTL; an unexpiring set under <prefix>user:<org>/<user>
// indexes the user's session ids for listing and bulk revocation.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to addr and verifies the connection with a ping.
func NewRedisStore(addr, prefix string) (*RedisStore, error) {
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: cl, prefix: prefix}, nil
}

// NewRedisStoreWithClient wraps an existing client, for callers that share
// one connection pool across stores.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) sessionKey(id string) string { return r.prefix + "id:" + id }
func (r *RedisStore) userKey(orgID, userID string) string {
	return r.prefix + "user:" + orgID + "/" + userID
}

// Get returns the stored session, or (nil, nil) when the key is absent.
func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Save upserts the session JSON with ttl and adds the id to the user index.
func (r *RedisStore) Save(ctx context.Context, s *domain.Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(s.ID), raw, ttl)
	pipe.SAdd(ctx, r.userKey(s.OrgID, s.UserID), s.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// Delete removes the session value. The index entry is cleaned up lazily by
// ListActiveByUser when the value is gone.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// ListActiveByUser returns the user's active sessions, pruning index
// entries whose values have expired.
func (r *RedisStore) ListActiveByUser(ctx context.Context, userID, orgID string) ([]*domain.Session, error) {
	key := r.userKey(orgID, userID)
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list sessions: %w", err)
	}
	var out []*domain.Session
	var stale []interface{}
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s == nil {
			stale = append(stale, id)
			continue
		}
		if s.Active {
			out = append(out, s)
		}
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, key, stale...).Err(); err != nil {
			return nil, fmt.Errorf("redis prune session index: %w", err)
		}
	}
	return out, nil
}

// RevokeAllByUser marks the user's active sessions inactive, preserving the
// remaining TTL on each record so revoked rows stay visible until they
// would have expired anyway.
func (r *RedisStore) RevokeAllByUser(ctx context.Context, userID, orgID, exceptID, reason string) (int, error) {
	sessions, err := r.ListActiveByUser(ctx, userID, orgID)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	revoked := 0
	for _, s := range sessions {
		if s.ID == exceptID {
			continue
		}
		at := now
		s.Active = false
		s.Reason = reason
		s.InvalidatedAt = &at

		ttl, err := r.client.TTL(ctx, r.sessionKey(s.ID)).Result()
		if err != nil {
			return revoked, fmt.Errorf("redis session ttl: %w", err)
		}
		if ttl <= 0 {
			continue
		}
		raw, err := json.Marshal(s)
		if err != nil {
			return revoked, fmt.Errorf("encode session: %w", err)
		}
		if err := r.client.Set(ctx, r.sessionKey(s.ID), raw, ttl).Err(); err != nil {
			return revoked, fmt.Errorf("redis revoke session: %w", err)
		}
		revoked++
	}
	return revoked, nil
}
