package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/permithq/permit"
)

// RedisAssignmentStore keeps user-role assignments in Redis hashes
// (key: permit:assign:{userID}, field: roleID, value: assignment JSON).
// Useful when several engine instances share assignment state.
type RedisAssignmentStore struct {
	client *redis.Client
	keyFmt string
}

func NewRedisAssignmentStore(client *redis.Client) *RedisAssignmentStore {
	return &RedisAssignmentStore{client: client, keyFmt: "permit:assign:%s"}
}

func (r *RedisAssignmentStore) key(userID string) string {
	return fmt.Sprintf(r.keyFmt, userID)
}

func (r *RedisAssignmentStore) Assign(ctx context.Context, a *permit.RoleAssignment) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key(a.UserID), a.RoleID, raw).Err(); err != nil {
		return err
	}
	return r.client.SAdd(ctx, fmt.Sprintf("permit:role_users:%s", a.RoleID), a.UserID).Err()
}

func (r *RedisAssignmentStore) Revoke(ctx context.Context, userID, roleID string) error {
	n, err := r.client.HDel(ctx, r.key(userID), roleID).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: assignment of %s to %s", permit.ErrNotFound, roleID, userID)
	}
	return r.client.SRem(ctx, fmt.Sprintf("permit:role_users:%s", roleID), userID).Err()
}

func (r *RedisAssignmentStore) ListForUser(ctx context.Context, userID string) ([]*permit.RoleAssignment, error) {
	entries, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*permit.RoleAssignment, 0, len(entries))
	for _, raw := range entries {
		a := &permit.RoleAssignment{}
		if err := json.Unmarshal([]byte(raw), a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *RedisAssignmentStore) ListForRole(ctx context.Context, roleID string) ([]*permit.RoleAssignment, error) {
	users, err := r.client.SMembers(ctx, fmt.Sprintf("permit:role_users:%s", roleID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*permit.RoleAssignment, 0, len(users))
	for _, userID := range users {
		raw, err := r.client.HGet(ctx, r.key(userID), roleID).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		a := &permit.RoleAssignment{}
		if err := json.Unmarshal([]byte(raw), a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// RedisEpochSource backs epoch counters with Redis INCR, so a bump on one
// engine instance invalidates cached decisions on all of them.
type RedisEpochSource struct {
	client    *redis.Client
	globalKey string
	userFmt   string
}

func NewRedisEpochSource(client *redis.Client) *RedisEpochSource {
	return &RedisEpochSource{
		client:    client,
		globalKey: "permit:epoch:global",
		userFmt:   "permit:epoch:user:%s",
	}
}

func (r *RedisEpochSource) Global(ctx context.Context) (uint64, error) {
	return r.counter(ctx, r.globalKey)
}

func (r *RedisEpochSource) User(ctx context.Context, userID string) (uint64, error) {
	return r.counter(ctx, fmt.Sprintf(r.userFmt, userID))
}

func (r *RedisEpochSource) BumpGlobal(ctx context.Context) error {
	return r.client.Incr(ctx, r.globalKey).Err()
}

func (r *RedisEpochSource) BumpUser(ctx context.Context, userID string) error {
	return r.client.Incr(ctx, fmt.Sprintf(r.userFmt, userID)).Err()
}

func (r *RedisEpochSource) counter(ctx context.Context, key string) (uint64, error) {
	v, err := r.client.Get(ctx, key).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

// RedisUserDirectory resolves user activity from Redis string keys
// (key: permit:user:{userID}, value: "1" active, "0" inactive).
type RedisUserDirectory struct {
	client *redis.Client
	keyFmt string
}

func NewRedisUserDirectory(client *redis.Client) *RedisUserDirectory {
	return &RedisUserDirectory{client: client, keyFmt: "permit:user:%s"}
}

func (r *RedisUserDirectory) SetStatus(ctx context.Context, userID string, status permit.UserStatus) error {
	v := "0"
	if status == permit.UserActive {
		v = "1"
	}
	return r.client.Set(ctx, fmt.Sprintf(r.keyFmt, userID), v, 0).Err()
}

func (r *RedisUserDirectory) Status(ctx context.Context, userID string) (permit.UserStatus, error) {
	v, err := r.client.Get(ctx, fmt.Sprintf(r.keyFmt, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return permit.UserUnknown, nil
		}
		return permit.UserUnknown, err
	}
	if v == "1" {
		return permit.UserActive, nil
	}
	return permit.UserInactive, nil
}
