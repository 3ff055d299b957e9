package config

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a configuration file.
type Format string

const (
	YamlFormat Format = "yaml"
	JsonFormat Format = "json"
	TomlFormat Format = "toml"
)

type codec struct {
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

var codecs = map[Format]codec{
	YamlFormat: {marshal: yaml.Marshal, unmarshal: yaml.Unmarshal},
	JsonFormat: {marshal: json.Marshal, unmarshal: json.Unmarshal},
	TomlFormat: {marshal: toml.Marshal, unmarshal: toml.Unmarshal},
}

// toYAML re-encodes data as YAML so every format decodes through the same
// rules, time.Duration strings like "5s" included.
func (c codec) toYAML(data []byte) ([]byte, error) {
	var generic any
	if err := c.unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

func codecFor(format Format) (codec, error) {
	c, ok := codecs[format]
	if !ok {
		return codec{}, errors.Errorf("unsupported format %q", format)
	}
	return c, nil
}

// FormatFromPath picks the format matching the file extension of path.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JsonFormat
	case ".toml":
		return TomlFormat
	default:
		return YamlFormat
	}
}
