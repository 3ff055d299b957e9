// Package secrets resolves ${prefix:key} references found in configuration values.
// Loaders are registered per prefix; "env" is always available and is used when a
// reference carries no prefix.
package secrets

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SecretLoader retrieves the value of a secret by key.
//
// Implementations in this package:
//   - EnvLoader: environment variables
//   - FileSecretLoader: files in a secrets directory
//   - VaultSecretLoader: a HashiCorp Vault KV path
//   - AWSSecretLoader: an AWS Secrets Manager secret
type SecretLoader interface {
	// Resolve returns the value for key (the reference without its prefix).
	Resolve(key string) (string, error)
	// Name is a human readable name used in logs and errors.
	Name() string
}

const defaultPrefix = "env"

var (
	mu      sync.RWMutex
	loaders = map[string]SecretLoader{defaultPrefix: NewEnvLoader()}
)

// Register binds loader to prefix (without the trailing colon), replacing any
// loader previously registered for it.
func Register(prefix string, loader SecretLoader) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := loaders[prefix]; exists {
		log.Warn().Str("prefix", prefix).Msg("Overriding existing secret loader")
	}
	loaders[prefix] = loader
}

// Unregister removes the loader bound to prefix.
func Unregister(prefix string) {
	mu.Lock()
	defer mu.Unlock()
	delete(loaders, prefix)
}

// Prefixes lists the registered prefixes in lexical order.
func Prefixes() []string {
	mu.RLock()
	defer mu.RUnlock()
	prefixes := make([]string, 0, len(loaders))
	for prefix := range loaders {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Resolve resolves a reference of the form "prefix:key" or "key".
//
//   - "vault:DATABASE_PASSWORD" -> Vault loader, key DATABASE_PASSWORD
//   - "custom:db:password"      -> custom loader, key "db:password"
//   - "PORT"                    -> env loader, key PORT
func Resolve(property string) (string, error) {
	prefix, key, found := strings.Cut(property, ":")
	if !found {
		prefix, key = defaultPrefix, property
	}

	mu.RLock()
	loader, exists := loaders[prefix]
	mu.RUnlock()
	if !exists {
		return "", errors.Errorf("no secret loader registered for prefix %q", prefix)
	}

	value, err := loader.Resolve(key)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve secret %q using %s loader", property, loader.Name())
	}
	return value, nil
}
