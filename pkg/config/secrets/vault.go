package secrets

import (
	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// VaultConfig configures the "vault" loader.
type VaultConfig struct {
	Address   string `yaml:"address" json:"address" toml:"address"`
	Token     string `yaml:"token" json:"token" toml:"token"`
	Path      string `yaml:"path" json:"path" toml:"path"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty" toml:"namespace,omitempty"`
}

func (v VaultConfig) Validate() error {
	if v.Address == "" {
		return errors.New("Vault address is required")
	}
	if v.Token == "" {
		return errors.New("Vault token is required")
	}
	if v.Path == "" {
		return errors.New("Vault path is required")
	}
	return nil
}

// CreateClient implements config.ClientFactory[*api.Client].
func (v VaultConfig) CreateClient() (*api.Client, error) {
	cfg := api.DefaultConfig()
	cfg.Address = v.Address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Vault client")
	}
	client.SetToken(v.Token)
	if v.Namespace != "" {
		client.SetNamespace(v.Namespace)
	}
	return client, nil
}

// VaultSecretLoader reads keys of a single Vault secret. KV v1 and KV v2 engines
// are both supported.
//
//	password: ${vault:REDIS_PASSWORD}
type VaultSecretLoader struct {
	logical *api.Logical
	path    string
}

func NewVaultSecretLoader(client *api.Client, path string) *VaultSecretLoader {
	return &VaultSecretLoader{logical: client.Logical(), path: path}
}

func (v *VaultSecretLoader) Resolve(key string) (string, error) {
	secret, err := v.logical.Read(v.path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read secret from Vault path %q", v.path)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.Errorf("no secret found at Vault path %q", v.path)
	}

	data := secret.Data
	if nested, present := secret.Data["data"]; present {
		// KV v2 wraps the payload
		kv, ok := nested.(map[string]any)
		if !ok {
			return "", errors.New("unexpected data format in KV v2 secret")
		}
		data = kv
	}

	value, ok := data[key].(string)
	if !ok {
		return "", errors.Errorf("secret %q not found in Vault at path %q", key, v.path)
	}
	log.Debug().Str("secret_name", key).Str("vault_path", v.path).Msg("Retrieved secret from Vault")
	return value, nil
}

func (v *VaultSecretLoader) Name() string {
	return "Vault"
}
