package environment

import (
	"time"

	"github.com/pkg/errors"
)

// StoreOptions is the "store" configuration module: where the table based stores
// keep their properties and how long one fetch may take.
type StoreOptions struct {
	PostgresTable     string        `yaml:"postgres_table,omitempty" json:"postgres_table,omitempty" toml:"postgres_table,omitempty"`
	MongoDBCollection string        `yaml:"mongodb_collection,omitempty" json:"mongodb_collection,omitempty" toml:"mongodb_collection,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" toml:"timeout,omitempty"`
}

// DefaultStoreOptions apply to every option left unset.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{PostgresTable: "properties", MongoDBCollection: "properties", Timeout: 5 * time.Second}
}

func (o StoreOptions) Validate() error {
	if o.Timeout < 0 {
		return errors.New("store timeout must be non-negative")
	}
	return nil
}

// WithDefaults fills the unset options from DefaultStoreOptions.
func (o StoreOptions) WithDefaults() StoreOptions {
	defaults := DefaultStoreOptions()
	if o.PostgresTable == "" {
		o.PostgresTable = defaults.PostgresTable
	}
	if o.MongoDBCollection == "" {
		o.MongoDBCollection = defaults.MongoDBCollection
	}
	if o.Timeout == 0 {
		o.Timeout = defaults.Timeout
	}
	return o
}
