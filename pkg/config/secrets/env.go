package secrets

import (
	"os"

	"github.com/rs/zerolog/log"
)

// EnvLoader resolves secrets from environment variables.
//
//	password: ${REDIS_PASSWORD}      # implicit
//	password: ${env:REDIS_PASSWORD}  # explicit
type EnvLoader struct{}

func NewEnvLoader() *EnvLoader {
	return &EnvLoader{}
}

// Resolve returns the variable value. A missing variable resolves to the empty
// string, the way os.Expand treats it, and is reported with a warning.
func (e *EnvLoader) Resolve(key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		log.Warn().Str("env_var", key).Msg("Environment variable not set or empty, using empty string")
		return "", nil
	}
	log.Debug().Str("env_var", key).Msg("Retrieved value from environment variable")
	return value, nil
}

func (e *EnvLoader) Name() string {
	return "Environment"
}
