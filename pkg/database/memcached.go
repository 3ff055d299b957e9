package database

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MemcachedConfig holds the Memcached client settings.
type MemcachedConfig struct {
	// Servers lists host:port addresses, e.g. ["localhost:11211"].
	Servers []string `yaml:"servers" json:"servers" toml:"servers"`

	// Timeout defaults to 100ms.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" toml:"timeout,omitempty"`

	// MaxIdleConns per server, defaults to 2.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty" toml:"max_idle_conns,omitempty"`
}

func (m MemcachedConfig) Validate() error {
	if len(m.Servers) == 0 {
		return errors.New("at least one Memcached server address is required")
	}
	for i, server := range m.Servers {
		if server == "" {
			return errors.Errorf("server address at index %d is empty", i)
		}
	}
	if m.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if m.MaxIdleConns < 0 {
		return errors.New("max_idle_conns cannot be negative")
	}
	return nil
}

// CreateClient implements config.ClientFactory[*memcache.Client]. The servers
// are pinged before the client is returned.
func (m MemcachedConfig) CreateClient() (*memcache.Client, error) {
	client := m.newClient()
	if err := client.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Memcached")
	}
	log.Info().Strs("servers", m.Servers).Msg("Memcached client configured")
	return client, nil
}

func (m MemcachedConfig) newClient() *memcache.Client {
	client := memcache.New(m.Servers...)
	client.Timeout = 100 * time.Millisecond
	if m.Timeout > 0 {
		client.Timeout = m.Timeout
	}
	client.MaxIdleConns = 2
	if m.MaxIdleConns > 0 {
		client.MaxIdleConns = m.MaxIdleConns
	}
	return client
}
