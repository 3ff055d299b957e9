package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FileSecretConfig configures the "file" loader.
type FileSecretConfig struct {
	SecretsDir string `yaml:"secrets_dir" json:"secrets_dir" toml:"secrets_dir"`
}

func (f FileSecretConfig) Validate() error {
	if f.SecretsDir == "" {
		return errors.New("secrets_dir is required for file loader")
	}
	info, err := os.Stat(f.SecretsDir)
	if os.IsNotExist(err) {
		return errors.Errorf("secrets_dir %q does not exist", f.SecretsDir)
	}
	if err != nil {
		return errors.Wrapf(err, "error accessing secrets_dir %q", f.SecretsDir)
	}
	if !info.IsDir() {
		return errors.Errorf("secrets_dir %q is not a directory", f.SecretsDir)
	}
	return nil
}

// CreateClient implements config.ClientFactory[*FileSecretLoader].
func (f FileSecretConfig) CreateClient() (*FileSecretLoader, error) {
	return NewFileSecretLoader(f.SecretsDir)
}

// FileSecretLoader reads secrets from files of a directory, as mounted by Docker
// or Kubernetes secrets. ${file:redis_password} reads <dir>/redis_password.
// Contents are trimmed of surrounding whitespace.
type FileSecretLoader struct {
	secretsDir string
}

func NewFileSecretLoader(secretsDir string) (*FileSecretLoader, error) {
	if secretsDir == "" {
		return nil, errors.New("no secrets directory configured")
	}
	abs, err := filepath.Abs(secretsDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path for secrets directory")
	}
	return &FileSecretLoader{secretsDir: abs}, nil
}

func (f *FileSecretLoader) Resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("no file specified for file secret")
	}
	if filepath.IsAbs(key) {
		return "", errors.New("invalid secret key: absolute paths not allowed")
	}
	clean := filepath.Clean(key)
	if strings.Contains(clean, "..") {
		return "", errors.New("invalid secret key: path traversal detected")
	}

	path := filepath.Join(f.secretsDir, clean)
	if !strings.HasPrefix(path, f.secretsDir+string(filepath.Separator)) {
		return "", errors.New("invalid secret key: outside secrets directory")
	}

	// #nosec G304 -- path is confined to the secrets directory above
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New("secret not found")
		}
		return "", errors.New("failed to read secret")
	}

	log.Debug().Str("file", path).Msg("Retrieved secret from file")
	return strings.TrimSpace(string(content)), nil
}

func (f *FileSecretLoader) Name() string {
	return "File"
}
