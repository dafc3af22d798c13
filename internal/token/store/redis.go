package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "mg:tokens:"

// rotateScript performs the used-check and the transition in one atomic
// step so two concurrent rotations of the same jti cannot both win.
// Returns -1 unknown jti, 0 already used or revoked, 1 rotated.
var rotateScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
  return -1
end
if redis.call('HGET', key, 'used_at') ~= false or redis.call('HGET', key, 'revoked_at') ~= false then
  return 0
end
redis.call('HSET', key, 'used_at', ARGV[1], 'replaced_by', ARGV[2])
return 1
`)

// RedisStore persists refresh-token records as Redis hashes under
// <prefix>jti:<jti>, with set indexes per family and per session. Record
// TTLs follow the token expiry.
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

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) jtiKey(jti string) string          { return r.prefix + "jti:" + jti }
func (r *RedisStore) familyKey(familyID string) string  { return r.prefix + "family:" + familyID }
func (r *RedisStore) sessionKey(sessionID string) string { return r.prefix + "session:" + sessionID }

// Put stores the record and indexes it by family and session. The key
// expires with the token; index entries for expired jtis are pruned
// lazily during revocation.
func (r *RedisStore) Put(ctx context.Context, rec *RefreshRecord) error {
	fields := map[string]interface{}{
		"jti":        rec.JTI,
		"family_id":  rec.FamilyID,
		"session_id": rec.SessionID,
		"user_id":    rec.UserID,
		"org_id":     rec.OrgID,
		"token_hash": rec.TokenHash,
		"issued_at":  rec.IssuedAt.UTC().Format(time.RFC3339Nano),
		"expires_at": rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if rec.UsedAt != nil {
		fields["used_at"] = rec.UsedAt.UTC().Format(time.RFC3339Nano)
	}
	if rec.RevokedAt != nil {
		fields["revoked_at"] = rec.RevokedAt.UTC().Format(time.RFC3339Nano)
	}
	if rec.ReplacedBy != "" {
		fields["replaced_by"] = rec.ReplacedBy
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.jtiKey(rec.JTI), fields)
	pipe.Expire(ctx, r.jtiKey(rec.JTI), ttl)
	pipe.SAdd(ctx, r.familyKey(rec.FamilyID), rec.JTI)
	pipe.Expire(ctx, r.familyKey(rec.FamilyID), ttl)
	pipe.SAdd(ctx, r.sessionKey(rec.SessionID), rec.JTI)
	pipe.Expire(ctx, r.sessionKey(rec.SessionID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put refresh record: %w", err)
	}
	return nil
}

// Get returns the record for jti, or ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, jti string) (*RefreshRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.jtiKey(jti)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get refresh record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromFields(fields)
}

// MarkRotated runs the atomic check-and-set script.
func (r *RedisStore) MarkRotated(ctx context.Context, jti, successorJTI string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := rotateScript.Run(ctx, r.client, []string{r.jtiKey(jti)}, now, successorJTI).Int()
	if err != nil {
		return fmt.Errorf("redis rotate refresh record: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrReused
	default:
		return ErrNotFound
	}
}

// RevokeFamily revokes every live record indexed under familyID.
func (r *RedisStore) RevokeFamily(ctx context.Context, familyID string) (int, error) {
	return r.revokeIndexed(ctx, r.familyKey(familyID))
}

// RevokeBySession revokes every live record indexed under sessionID.
func (r *RedisStore) RevokeBySession(ctx context.Context, sessionID string) (int, error) {
	return r.revokeIndexed(ctx, r.sessionKey(sessionID))
}

func (r *RedisStore) revokeIndexed(ctx context.Context, indexKey string) (int, error) {
	jtis, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list refresh records: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	revoked := 0
	var stale []interface{}
	for _, jti := range jtis {
		key := r.jtiKey(jti)
		exists, err := r.client.Exists(ctx, key).Result()
		if err != nil {
			return revoked, fmt.Errorf("redis revoke refresh record: %w", err)
		}
		if exists == 0 {
			stale = append(stale, jti)
			continue
		}
		already, err := r.client.HGet(ctx, key, "revoked_at").Result()
		if err != nil && err != redis.Nil {
			return revoked, fmt.Errorf("redis revoke refresh record: %w", err)
		}
		if already != "" {
			continue
		}
		if err := r.client.HSet(ctx, key, "revoked_at", now).Err(); err != nil {
			return revoked, fmt.Errorf("redis revoke refresh record: %w", err)
		}
		revoked++
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return revoked, fmt.Errorf("redis prune refresh index: %w", err)
		}
	}
	return revoked, nil
}

func recordFromFields(fields map[string]string) (*RefreshRecord, error) {
	rec := &RefreshRecord{
		JTI:        fields["jti"],
		FamilyID:   fields["family_id"],
		SessionID:  fields["session_id"],
		UserID:     fields["user_id"],
		OrgID:      fields["org_id"],
		TokenHash:  fields["token_hash"],
		ReplacedBy: fields["replaced_by"],
	}
	var err error
	if rec.IssuedAt, err = parseRFC3339(fields["issued_at"]); err != nil {
		return nil, err
	}
	if rec.ExpiresAt, err = parseRFC3339(fields["expires_at"]); err != nil {
		return nil, err
	}
	if v := fields["used_at"]; v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			return nil, err
		}
		rec.UsedAt = &t
	}
	if v := fields["revoked_at"]; v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			return nil, err
		}
		rec.RevokedAt = &t
	}
	return rec, nil
}

func parseRFC3339(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode refresh record time %q: %w", v, err)
	}
	return t, nil
}
