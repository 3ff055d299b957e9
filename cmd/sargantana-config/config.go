package main

import (
	"github.com/animalet/sargantana-config/pkg/config"
	"github.com/animalet/sargantana-config/pkg/config/secrets"
	"github.com/pkg/errors"
)

// loadConfig reads the configuration file and registers all secret providers
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration file")
	}

	if err := registerSecretProviders(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// registerSecretProviders registers the secret providers present in cfg. They
// are registered before any other module is decoded so ${vault:...} style
// references resolve everywhere else.
func registerSecretProviders(cfg *config.Config) error {
	vaultClient, vaultCfg, err := config.GetClientAndConfig[secrets.VaultConfig](cfg, "vault")
	if err != nil {
		return errors.Wrap(err, "failed to load Vault configuration")
	}
	if vaultClient != nil {
		secrets.Register("vault", secrets.NewVaultSecretLoader(*vaultClient, vaultCfg.Path))
	}

	fileLoader, err := config.GetClient[secrets.FileSecretConfig](cfg, "file_resolver")
	if err != nil {
		return errors.Wrap(err, "failed to load file secret resolver configuration")
	}
	if fileLoader != nil {
		secrets.Register("file", *fileLoader)
	}

	awsClient, awsCfg, err := config.GetClientAndConfig[secrets.AWSConfig](cfg, "aws")
	if err != nil {
		return errors.Wrap(err, "failed to load AWS Secrets Manager configuration")
	}
	if awsClient != nil {
		secrets.Register("aws", secrets.NewAWSSecretLoader(*awsClient, awsCfg.SecretName))
	}
	return nil
}
