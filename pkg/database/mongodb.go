package database

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDBConfig holds the MongoDB client settings.
type MongoDBConfig struct {
	// URI such as "mongodb://localhost:27017".
	URI      string `yaml:"uri" json:"uri" toml:"uri"`
	Database string `yaml:"database" json:"database" toml:"database"`

	// Username and Password are optional when included in the URI.
	Username string `yaml:"username,omitempty" json:"username,omitempty" toml:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" toml:"password,omitempty"`

	// AuthSource defaults to "admin".
	AuthSource string `yaml:"auth_source,omitempty" json:"auth_source,omitempty" toml:"auth_source,omitempty"`

	TLS *TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty" toml:"tls,omitempty"`

	// ConnectTimeout defaults to 10s.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty" toml:"connect_timeout,omitempty"`
	MaxPoolSize    uint64        `yaml:"max_pool_size,omitempty" json:"max_pool_size,omitempty" toml:"max_pool_size,omitempty"`
	MinPoolSize    uint64        `yaml:"min_pool_size,omitempty" json:"min_pool_size,omitempty" toml:"min_pool_size,omitempty"`
}

func (m MongoDBConfig) Validate() error {
	if m.URI == "" {
		return errors.New("MongoDB URI is required")
	}
	if m.Database == "" {
		return errors.New("MongoDB database name is required")
	}
	if m.ConnectTimeout < 0 {
		return errors.New("connect_timeout cannot be negative")
	}
	if m.MaxPoolSize > 0 && m.MinPoolSize > m.MaxPoolSize {
		return errors.New("min_pool_size cannot be greater than max_pool_size")
	}
	if m.TLS == nil {
		return nil
	}
	if err := m.TLS.Validate(); err != nil {
		return err
	}
	for _, file := range []string{m.TLS.CertFile, m.TLS.KeyFile, m.TLS.CAFile} {
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); os.IsNotExist(err) {
			return errors.Errorf("TLS file does not exist: %s", file)
		}
	}
	return nil
}

func (m MongoDBConfig) connectTimeout() time.Duration {
	if m.ConnectTimeout == 0 {
		return 10 * time.Second
	}
	return m.ConnectTimeout
}

// ClientOptions translates the settings into driver options.
func (m MongoDBConfig) ClientOptions() (*options.ClientOptions, error) {
	opts := options.Client().ApplyURI(m.URI).SetConnectTimeout(m.connectTimeout())

	if m.Username != "" || m.Password != "" {
		authSource := m.AuthSource
		if authSource == "" {
			authSource = "admin"
		}
		opts.SetAuth(options.Credential{Username: m.Username, Password: m.Password, AuthSource: authSource})
	}

	opts.SetMaxPoolSize(100)
	if m.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(m.MaxPoolSize)
	}
	if m.MinPoolSize > 0 {
		opts.SetMinPoolSize(m.MinPoolSize)
	}

	if m.TLS != nil {
		tlsConfig, err := m.TLS.Build()
		if err != nil {
			return nil, errors.Wrap(err, "failed to build TLS configuration")
		}
		opts.SetTLSConfig(tlsConfig)
	}
	return opts, nil
}

// CreateClient implements config.ClientFactory[*mongo.Client]. The primary is
// pinged before the client is returned.
func (m MongoDBConfig) CreateClient() (*mongo.Client, error) {
	opts, err := m.ClientOptions()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.connectTimeout())
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		if disconnectErr := client.Disconnect(disconnectCtx); disconnectErr != nil {
			return nil, errors.Wrapf(err, "failed to ping MongoDB (disconnect also failed: %v)", disconnectErr)
		}
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	log.Info().Str("database", m.Database).Msg("MongoDB client configured")
	return client, nil
}
