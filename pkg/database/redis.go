// Package database builds clients for the stores environments are read from:
// Redis, Memcached, PostgreSQL and MongoDB. Each XxxConfig is a configuration
// module implementing config.ClientFactory for its client type.
package database

import (
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RedisConfig holds the Redis connection pool settings.
type RedisConfig struct {
	Address        string        `yaml:"address" json:"address" toml:"address"`
	Username       string        `yaml:"username,omitempty" json:"username,omitempty" toml:"username,omitempty"`
	Password       string        `yaml:"password,omitempty" json:"password,omitempty" toml:"password,omitempty"`
	Database       int           `yaml:"database,omitempty" json:"database,omitempty" toml:"database,omitempty"`
	MaxIdle        int           `yaml:"max_idle" json:"max_idle" toml:"max_idle"`
	MaxActive      int           `yaml:"max_active,omitempty" json:"max_active,omitempty" toml:"max_active,omitempty"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty" toml:"connect_timeout,omitempty"`
	ReadTimeout    time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty" toml:"read_timeout,omitempty"`
	TLS            *TLSConfig    `yaml:"tls,omitempty" json:"tls,omitempty" toml:"tls,omitempty"`
}

func (r RedisConfig) Validate() error {
	if r.Address == "" {
		return errors.New("redis address must be set and non-empty")
	}
	if r.MaxIdle < 0 {
		return errors.New("redis max_idle must be non-negative")
	}
	if r.MaxActive < 0 {
		return errors.New("redis max_active must be non-negative")
	}
	if r.IdleTimeout < 0 || r.ConnectTimeout < 0 || r.ReadTimeout < 0 {
		return errors.New("redis timeouts must be non-negative")
	}
	if r.Database < 0 {
		return errors.New("redis database must be non-negative")
	}
	if r.TLS != nil {
		return r.TLS.Validate()
	}
	return nil
}

// CreateClient implements config.ClientFactory[*redis.Pool]. No connection is
// opened until the pool is first used.
func (r RedisConfig) CreateClient() (*redis.Pool, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid Redis configuration")
	}
	log.Info().Str("address", r.Address).Int("database", r.Database).Bool("tls", r.TLS != nil).Msg("Redis pool configured")
	return NewRedisPool(r), nil
}

// NewRedisPool returns a pool dialing with cfg. Connections idle for more than a
// minute are checked with PING before being handed out.
func NewRedisPool(cfg RedisConfig) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		MaxActive:   cfg.MaxActive,
		IdleTimeout: cfg.IdleTimeout,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
		Dial: func() (redis.Conn, error) {
			return dialRedis(cfg)
		},
	}
}

func dialRedis(cfg RedisConfig) (redis.Conn, error) {
	opts := []redis.DialOption{redis.DialDatabase(cfg.Database)}
	if cfg.Username != "" {
		opts = append(opts, redis.DialUsername(cfg.Username))
	}
	if cfg.Password != "" {
		opts = append(opts, redis.DialPassword(cfg.Password))
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, redis.DialConnectTimeout(cfg.ConnectTimeout))
	}
	if cfg.ReadTimeout > 0 {
		opts = append(opts, redis.DialReadTimeout(cfg.ReadTimeout))
	}
	if cfg.TLS != nil {
		tlsConfig, err := cfg.TLS.Build()
		if err != nil {
			return nil, err
		}
		opts = append(opts, redis.DialTLSConfig(tlsConfig), redis.DialUseTLS(true))
	}
	return redis.Dial("tcp", cfg.Address, opts...)
}
