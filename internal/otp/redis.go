package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// deleteIfCodeScript removes the key only when the stored value still carries
// the given code, keeping check-then-act atomic on the redis side.
var deleteIfCodeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local sep = string.find(v, '|', 1, true)
if not sep then return 0 end
if string.sub(v, 1, sep - 1) == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

// RedisStore keeps OTP records in redis so multiple instances share one
// lifecycle. Values encode as "<code>|<expiry unix ms>" with a matching TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "otp:"}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// Put stores the record with a TTL aligned to its expiry.
func (s *RedisStore) Put(ctx context.Context, key string, rec Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}
	value := rec.Code + "|" + strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10)
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("otp: redis set: %w", err)
	}
	return nil
}

// Get returns the record for the key. A missing or malformed value reads as
// absent.
func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("otp: redis get: %w", err)
	}
	sep := strings.IndexByte(value, '|')
	if sep < 0 {
		return Record{}, false, nil
	}
	millis, err := strconv.ParseInt(value[sep+1:], 10, 64)
	if err != nil {
		return Record{}, false, nil
	}
	return Record{Code: value[:sep], ExpiresAt: time.UnixMilli(millis)}, true, nil
}

// Delete removes the record for the key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("otp: redis del: %w", err)
	}
	return nil
}

// DeleteIfCode removes the record only when it still holds the given code.
func (s *RedisStore) DeleteIfCode(ctx context.Context, key, code string) (bool, error) {
	n, err := deleteIfCodeScript.Run(ctx, s.client, []string{s.key(key)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("otp: redis delete-if-code: %w", err)
	}
	return n == 1, nil
}
