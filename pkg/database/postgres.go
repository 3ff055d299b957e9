package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var sslModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// PostgresConfig holds the PostgreSQL connection pool settings.
type PostgresConfig struct {
	Host              string        `yaml:"host" json:"host" toml:"host"`
	Port              uint16        `yaml:"port" json:"port" toml:"port"`
	Database          string        `yaml:"database" json:"database" toml:"database"`
	User              string        `yaml:"user" json:"user" toml:"user"`
	Password          string        `yaml:"password" json:"password" toml:"password"`
	SSLMode           string        `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty" toml:"ssl_mode,omitempty"`
	MaxConns          int32         `yaml:"max_conns,omitempty" json:"max_conns,omitempty" toml:"max_conns,omitempty"`
	MinConns          int32         `yaml:"min_conns,omitempty" json:"min_conns,omitempty" toml:"min_conns,omitempty"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime,omitempty" json:"max_conn_lifetime,omitempty" toml:"max_conn_lifetime,omitempty"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time,omitempty" json:"max_conn_idle_time,omitempty" toml:"max_conn_idle_time,omitempty"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period,omitempty" json:"health_check_period,omitempty" toml:"health_check_period,omitempty"`
}

func (p PostgresConfig) Validate() error {
	switch {
	case p.Host == "":
		return errors.New("postgres host must be set and non-empty")
	case p.Port == 0:
		return errors.New("postgres port must be set and non-zero")
	case p.Database == "":
		return errors.New("postgres database must be set and non-empty")
	case p.User == "":
		return errors.New("postgres user must be set and non-empty")
	case p.Password == "":
		return errors.New("postgres password must be set and non-empty")
	}
	if p.SSLMode != "" && !sslModes[p.SSLMode] {
		return errors.Errorf("invalid ssl_mode %q, must be one of: disable, allow, prefer, require, verify-ca, verify-full", p.SSLMode)
	}
	if p.MaxConns < 0 || p.MinConns < 0 {
		return errors.New("max_conns and min_conns must be non-negative")
	}
	if p.MaxConns > 0 && p.MinConns > p.MaxConns {
		return errors.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", p.MinConns, p.MaxConns)
	}
	if p.MaxConnLifetime < 0 || p.MaxConnIdleTime < 0 || p.HealthCheckPeriod < 0 {
		return errors.New("postgres durations must be non-negative")
	}
	return nil
}

// CreateClient implements config.ClientFactory[*pgxpool.Pool]. The pool is
// pinged before it is returned.
func (p PostgresConfig) CreateClient() (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(p.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse PostgreSQL connection string")
	}
	if p.MaxConns > 0 {
		poolConfig.MaxConns = p.MaxConns
	}
	if p.MinConns > 0 {
		poolConfig.MinConns = p.MinConns
	}
	if p.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = p.MaxConnLifetime
	}
	if p.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = p.MaxConnIdleTime
	}
	if p.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = p.HealthCheckPeriod
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create PostgreSQL connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping PostgreSQL database")
	}

	log.Info().Str("host", p.Host).Uint16("port", p.Port).Str("database", p.Database).Msg("PostgreSQL pool configured")
	return pool, nil
}

// ConnectionString renders the settings as a postgres:// URL, sslmode "prefer"
// unless configured.
func (p PostgresConfig) ConnectionString() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}
