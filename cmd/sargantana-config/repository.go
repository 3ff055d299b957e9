package main

import (
	"context"

	"github.com/animalet/sargantana-config/pkg/config"
	"github.com/animalet/sargantana-config/pkg/database"
	"github.com/animalet/sargantana-config/pkg/environment"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// closers release store clients in reverse creation order.
type closers []func() error

func (c closers) Close() error {
	var failed []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("failed to close %d store client(s): %v", len(failed), failed)
	}
	return nil
}

type storeBuilder func(cfg *config.Config, opts environment.StoreOptions) (environment.Store, func() error, error)

// storeBuilders are tried in this order; the first configured store shapes the
// environment when several are configured.
var storeBuilders = []struct {
	module string
	build  storeBuilder
}{
	{"redis", redisStore},
	{"memcached", memcachedStore},
	{"postgres", postgresStore},
	{"mongodb", mongoStore},
}

// buildRepository creates a StoreRepository per configured store, chained in a
// Composite when there is more than one.
func buildRepository(cfg *config.Config, defaults environment.DefaultsProvider) (environment.Repository, closers, error) {
	opts, err := config.Get[environment.StoreOptions](cfg, "store")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load store options")
	}
	if opts == nil {
		opts = &environment.StoreOptions{}
	}
	storeOpts := opts.WithDefaults()

	var (
		repositories []environment.Repository
		release      closers
	)
	for _, builder := range storeBuilders {
		store, closeFunc, err := builder.build(cfg, storeOpts)
		if err != nil {
			_ = release.Close()
			return nil, nil, errors.Wrapf(err, "failed to configure %s store", builder.module)
		}
		if store == nil {
			continue
		}
		log.Info().Str("store", store.Name()).Msg("Store configured")
		repositories = append(repositories, environment.NewStoreRepository(store, defaults))
		release = append(release, closeFunc)
	}

	switch len(repositories) {
	case 0:
		return nil, nil, errors.New("no store configured, expected one of redis, memcached, postgres or mongodb")
	case 1:
		return repositories[0], release, nil
	}
	composite, err := environment.NewComposite(repositories...)
	if err != nil {
		_ = release.Close()
		return nil, nil, err
	}
	return composite, release, nil
}

func redisStore(cfg *config.Config, _ environment.StoreOptions) (environment.Store, func() error, error) {
	pool, err := config.GetClient[database.RedisConfig](cfg, "redis")
	if err != nil || pool == nil {
		return nil, nil, err
	}
	return environment.NewRedisStore(*pool), (*pool).Close, nil
}

func memcachedStore(cfg *config.Config, _ environment.StoreOptions) (environment.Store, func() error, error) {
	client, err := config.GetClient[database.MemcachedConfig](cfg, "memcached")
	if err != nil || client == nil {
		return nil, nil, err
	}
	return environment.NewMemcachedStore(*client), (*client).Close, nil
}

func postgresStore(cfg *config.Config, opts environment.StoreOptions) (environment.Store, func() error, error) {
	pool, err := config.GetClient[database.PostgresConfig](cfg, "postgres")
	if err != nil || pool == nil {
		return nil, nil, err
	}
	closeFunc := func() error {
		(*pool).Close()
		return nil
	}
	return environment.NewPostgresStore(*pool, opts.PostgresTable, opts.Timeout), closeFunc, nil
}

func mongoStore(cfg *config.Config, opts environment.StoreOptions) (environment.Store, func() error, error) {
	client, mongoCfg, err := config.GetClientAndConfig[database.MongoDBConfig](cfg, "mongodb")
	if err != nil || client == nil {
		return nil, nil, err
	}
	collection := (*client).Database(mongoCfg.Database).Collection(opts.MongoDBCollection)
	closeFunc := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()
		return (*client).Disconnect(ctx)
	}
	return environment.NewMongoStore(collection, opts.Timeout), closeFunc, nil
}
