// Package config provides modular configuration loading for the configuration server.
// A configuration file is a set of top-level modules ("server", "redis", "defaults", ...)
// that are decoded lazily into typed structs, validated and expanded on demand.
package config

import (
	"os"
	"reflect"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Validatable is implemented by every configuration module.
type Validatable interface {
	Validate() error
}

// ClientFactory is implemented by configurations that know how to build a client
// for the data source they describe.
//
// Example implementations:
//   - database.RedisConfig implements ClientFactory[*redis.Pool]
//   - secrets.VaultConfig implements ClientFactory[*api.Client]
type ClientFactory[T any] interface {
	Validatable
	// CreateClient creates and configures a client from the config details.
	CreateClient() (T, error)
}

// ModuleRawConfig holds the undecoded bytes of a single module, encoded in the
// format of the file it was read from.
type ModuleRawConfig []byte

// Config is a parsed configuration file. Modules are kept raw until requested.
type Config struct {
	format  Format
	modules map[string]ModuleRawConfig
}

// NewConfig reads the configuration file at path. The format is chosen from the
// file extension (.json, .toml), YAML otherwise.
func NewConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read configuration file %q", path)
	}
	return Parse(data, FormatFromPath(path))
}

// Parse splits data into its top-level modules.
func Parse(data []byte, format Format) (*Config, error) {
	codec, err := codecFor(format)
	if err != nil {
		return nil, err
	}

	var document map[string]any
	if err = codec.unmarshal(data, &document); err != nil {
		return nil, errors.Wrapf(err, "unable to parse %s configuration", format)
	}

	modules := make(map[string]ModuleRawConfig, len(document))
	for key, value := range document {
		raw, err := codec.marshal(value)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to extract module %q", key)
		}
		modules[key] = raw
	}

	return &Config{format: format, modules: modules}, nil
}

// Format returns the format the configuration was parsed with.
func (c *Config) Format() Format {
	return c.format
}

// Has reports whether the module key is present.
func (c *Config) Has(key string) bool {
	_, ok := c.modules[key]
	return ok
}

// Get decodes, expands and validates the module stored under key.
// It returns nil without error when the module is not present.
func Get[T Validatable](cfg *Config, key string) (*T, error) {
	raw, ok := cfg.modules[key]
	if !ok {
		return nil, nil
	}

	module, err := Unmarshal[T](cfg.format, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "module %q", key)
	}
	return module, nil
}

// GetClient loads the module stored under key and creates its client.
// It returns nil without error when the module is not present.
func GetClient[T ClientFactory[C], C any](cfg *Config, key string) (*C, error) {
	client, _, err := GetClientAndConfig[T, C](cfg, key)
	return client, err
}

// GetClientAndConfig behaves like GetClient but also returns the decoded module,
// for callers that need settings beyond the client itself.
func GetClientAndConfig[T ClientFactory[C], C any](cfg *Config, key string) (*C, *T, error) {
	module, err := Get[T](cfg, key)
	if err != nil || module == nil {
		return nil, nil, err
	}

	client, err := (*module).CreateClient()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to create client for module %q", key)
	}
	return &client, module, nil
}

// Unmarshal decodes raw into a new T, expands ${prefix:key} references in its
// string fields and validates the result.
func Unmarshal[T Validatable](format Format, raw ModuleRawConfig) (*T, error) {
	codec, err := codecFor(format)
	if err != nil {
		return nil, err
	}

	if format != YamlFormat {
		if raw, err = codec.toYAML(raw); err != nil {
			return nil, errors.Wrap(err, "unable to decode configuration")
		}
	}

	var result T
	if err = yaml.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "unable to decode configuration")
	}

	if err = expandVariables(reflect.ValueOf(&result).Elem()); err != nil {
		return nil, err
	}

	if err = result.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration is invalid")
	}
	return &result, nil
}

// Encode marshals value in format, e.g. to hand a nested section of a module over
// to Unmarshal.
func Encode(format Format, value any) (ModuleRawConfig, error) {
	codec, err := codecFor(format)
	if err != nil {
		return nil, err
	}
	raw, err := codec.marshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to encode %s configuration", format)
	}
	return raw, nil
}
