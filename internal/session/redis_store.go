package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore persists sessions as TTL-bound keys. Redis evicts expired keys
// itself, so expired records never survive to be counted or listed; Count
// therefore only ever sees live records, the stricter reading of the
// contract.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(sid string) string {
	return redisKeyPrefix + sid
}

func (s *RedisStore) Get(ctx context.Context, sid string) (Payload, bool, error) {
	data, err := s.client.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Payload{}, false, nil
		}
		return Payload{}, false, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, false, err
	}
	return p, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sid string, p Payload, hint ExpiryHint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ttl := time.Until(hint.Deadline(time.Now()))
	if ttl <= 0 {
		// An already-expired write must not leave a resolvable record.
		return s.client.Del(ctx, s.key(sid)).Err()
	}
	return s.client.Set(ctx, s.key(sid), data, ttl).Err()
}

func (s *RedisStore) Touch(ctx context.Context, sid string, hint ExpiryHint) error {
	// ExpireAt on a missing key reports false with no error, which is the
	// no-op the contract requires. A deadline in the past deletes the key.
	return s.client.ExpireAt(ctx, s.key(sid), hint.Deadline(time.Now())).Err()
}

func (s *RedisStore) Destroy(ctx context.Context, sid string) error {
	return s.client.Del(ctx, s.key(sid)).Err()
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]Payload, error) {
	out := make(map[string]Payload)
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Expired between scan and read.
				continue
			}
			return nil, err
		}
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		out[key[len(redisKeyPrefix):]] = p
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

var _ Store = (*RedisStore)(nil)
