// internal/proposal/redis.go
package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// consumeScript deletes the proposal and leaves a tombstone in one atomic
// step so racing executors see exactly one success. A replay after the
// winner finds the tombstone and is told the proposal was consumed rather
// than that it never existed.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
  redis.call('DEL', KEYS[1])
  redis.call('SET', KEYS[2], '1', 'EX', ARGV[1])
  return v
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 'CONSUMED'
end
return false
`)

// redisStore shares proposals across gateway replicas. Expiry rides on
// Redis TTLs, so an expired proposal is indistinguishable from an unknown
// one (the spec allows expired to behave as absent).
type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) Store {
	return &redisStore{rdb: rdb, ttl: ttl}
}

func key(id string) string          { return "proposal:" + id }
func tombstoneKey(id string) string { return "proposal:" + id + ":consumed" }

func (r *redisStore) Create(ctx context.Context, p Proposal) (Proposal, error) {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.ExpiresAt = now.Add(r.ttl)
	b, err := json.Marshal(p)
	if err != nil {
		return Proposal{}, fmt.Errorf("encode proposal: %w", err)
	}
	if err := r.rdb.Set(ctx, key(p.ID), b, r.ttl).Err(); err != nil {
		return Proposal{}, fmt.Errorf("store proposal: %w", err)
	}
	return p, nil
}

func (r *redisStore) Get(ctx context.Context, id string) (Proposal, error) {
	raw, err := r.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			if n, _ := r.rdb.Exists(ctx, tombstoneKey(id)).Result(); n > 0 {
				return Proposal{}, ErrConsumed
			}
			return Proposal{}, ErrNotFound
		}
		return Proposal{}, err
	}
	var p Proposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return Proposal{}, fmt.Errorf("decode proposal: %w", err)
	}
	return p, nil
}

func (r *redisStore) Consume(ctx context.Context, id string) (Proposal, error) {
	tombstoneTTL := int((r.ttl * 2) / time.Second)
	if tombstoneTTL < 1 {
		tombstoneTTL = 1
	}
	v, err := consumeScript.Run(ctx, r.rdb, []string{key(id), tombstoneKey(id)}, tombstoneTTL).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Proposal{}, ErrNotFound
		}
		return Proposal{}, err
	}
	s, ok := v.(string)
	if !ok {
		return Proposal{}, ErrNotFound
	}
	if s == "CONSUMED" {
		return Proposal{}, ErrConsumed
	}
	var p Proposal
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Proposal{}, fmt.Errorf("decode proposal: %w", err)
	}
	return p, nil
}
