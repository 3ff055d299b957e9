package environment

import (
	"github.com/gomodule/redigo/redis"
)

// RedisStore reads composite keys as Redis hashes.
type RedisStore struct {
	pool *redis.Pool
}

// NewRedisStore reads hashes through connections borrowed from pool.
func NewRedisStore(pool *redis.Pool) *RedisStore {
	return &RedisStore{pool: pool}
}

// Name identifies the store in property source names.
func (s *RedisStore) Name() string {
	return "redis"
}

// Fetch runs HGETALL on key. A missing key is an empty hash in Redis, so it
// comes back as an empty mapping.
func (s *RedisStore) Fetch(key string) (map[string]string, error) {
	conn := s.pool.Get()
	defer func() { _ = conn.Close() }()

	if err := conn.Err(); err != nil {
		return nil, unavailable(s.Name(), key, err)
	}

	reply, err := conn.Do("HGETALL", key)
	if err != nil {
		if _, isReply := err.(redis.Error); isReply {
			// WRONGTYPE and friends: the key holds something other than a hash
			return nil, malformed(s.Name(), key, err)
		}
		return nil, unavailable(s.Name(), key, err)
	}

	properties, err := redis.StringMap(reply, nil)
	if err != nil {
		return nil, malformed(s.Name(), key, err)
	}
	return properties, nil
}
