package environment

import (
	"encoding/json"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
)

// ItemGetter is the read side of *memcache.Client.
type ItemGetter interface {
	Get(key string) (*memcache.Item, error)
}

// MemcachedStore reads composite keys as items holding a JSON object of strings,
// e.g. {"server.port":"8080"}.
type MemcachedStore struct {
	client ItemGetter
}

// NewMemcachedStore reads JSON encoded properties through client.
func NewMemcachedStore(client ItemGetter) *MemcachedStore {
	return &MemcachedStore{client: client}
}

// Name identifies the store in property source names.
func (s *MemcachedStore) Name() string {
	return "memcached"
}

func (s *MemcachedStore) Fetch(key string) (map[string]string, error) {
	item, err := s.client.Get(key)
	switch {
	case errors.Is(err, memcache.ErrCacheMiss):
		return map[string]string{}, nil
	case errors.Is(err, memcache.ErrMalformedKey):
		return nil, malformed(s.Name(), key, err)
	case err != nil:
		return nil, unavailable(s.Name(), key, err)
	}

	properties := map[string]string{}
	if err := json.Unmarshal(item.Value, &properties); err != nil {
		return nil, malformed(s.Name(), key, errors.Wrap(err, "item is not a JSON object of strings"))
	}
	if properties == nil {
		// the item held a JSON null
		return map[string]string{}, nil
	}
	return properties, nil
}
