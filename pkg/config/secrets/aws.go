package secrets

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AWSConfig configures the "aws" loader backed by AWS Secrets Manager.
// Without static credentials the default credential chain is used.
type AWSConfig struct {
	Region          string `yaml:"region" json:"region" toml:"region"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty" toml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty" toml:"secret_access_key,omitempty"`
	SecretName      string `yaml:"secret_name" json:"secret_name" toml:"secret_name"`
	// Endpoint overrides the service endpoint (LocalStack and friends).
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" toml:"endpoint,omitempty"`
}

func (a AWSConfig) Validate() error {
	if a.Region == "" {
		return errors.New("AWS region is required")
	}
	if a.SecretName == "" {
		return errors.New("AWS secret name is required")
	}
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return errors.New("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// CreateClient implements config.ClientFactory[*secretsmanager.Client].
func (a AWSConfig) CreateClient() (*secretsmanager.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(a.Region)}
	if a.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(a.Endpoint))
	}
	if a.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// AWSSecretLoader reads a single Secrets Manager secret. A JSON object secret is
// indexed by key; any other secret string is returned whole regardless of key.
//
//	password: ${aws:REDIS_PASSWORD}
type AWSSecretLoader struct {
	client     *secretsmanager.Client
	secretName string
}

func NewAWSSecretLoader(client *secretsmanager.Client, secretName string) *AWSSecretLoader {
	return &AWSSecretLoader{client: client, secretName: secretName}
}

func (a *AWSSecretLoader) Resolve(key string) (string, error) {
	out, err := a.client.GetSecretValue(context.Background(), &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretName),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to read secret %q from AWS Secrets Manager", a.secretName)
	}
	if out.SecretString == nil {
		return "", errors.Errorf("secret %q has no string value", a.secretName)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(*out.SecretString), &fields); err != nil {
		log.Debug().Str("secret_name", a.secretName).Msg("Retrieved plain text secret from AWS Secrets Manager")
		return *out.SecretString, nil
	}

	value, ok := fields[key].(string)
	if !ok {
		return "", errors.Errorf("key %q not found in AWS secret %q", key, a.secretName)
	}
	log.Debug().Str("secret_name", a.secretName).Str("key", key).Msg("Retrieved secret from AWS Secrets Manager")
	return value, nil
}

func (a *AWSSecretLoader) Name() string {
	return "AWS Secrets Manager"
}
