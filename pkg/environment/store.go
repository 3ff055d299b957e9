package environment

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	// ErrStoreUnavailable reports that the store could not be reached or the call failed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMalformedResponse reports stored data that is not a flat string mapping.
	ErrMalformedResponse = errors.New("malformed store response")
)

// Store is a key-value store holding one flat property mapping per composite key.
type Store interface {
	// Name prefixes the property source names built from this store.
	Name() string
	// Fetch returns the mapping stored under key, empty when the key is absent.
	Fetch(key string) (map[string]string, error)
}

// StoreError is the failure of one Fetch. It matches its Kind with errors.Is.
type StoreError struct {
	Store string
	Key   string
	Kind  error
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s fetching %q: %v", e.Store, e.Kind, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == e.Kind
}

func unavailable(store, key string, err error) error {
	return &StoreError{Store: store, Key: key, Kind: ErrStoreUnavailable, Err: err}
}

func malformed(store, key string, err error) error {
	return &StoreError{Store: store, Key: key, Kind: ErrMalformedResponse, Err: err}
}

// StoreRepository is the Repository reading environments out of a Store.
// It holds no mutable state and is safe for concurrent use.
type StoreRepository struct {
	store    Store
	defaults DefaultsProvider
}

// NewStoreRepository resolves environments out of store, filling empty
// request arguments from defaults.
func NewStoreRepository(store Store, defaults DefaultsProvider) *StoreRepository {
	return &StoreRepository{store: store, defaults: defaults}
}

// FindOne substitutes the defaults for empty arguments, then fetches one property
// source per profile, sequentially and in profile order. The first fetch failure
// is returned and no Environment is produced.
func (r *StoreRepository) FindOne(application, profile, label string) (*Environment, error) {
	if application == "" {
		application = r.defaults.DefaultApplicationName()
	}
	if profile == "" {
		profile = r.defaults.DefaultProfile()
	}
	if label == "" {
		label = r.defaults.DefaultLabel()
	}

	profiles := ParseProfiles(profile)
	env := NewEnvironment(application, profiles, label)
	for _, p := range profiles {
		source, err := r.propertySource(application, p, label)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to resolve profile %q of application %q", p, application)
		}
		env.Add(source)
	}
	return env, nil
}

func (r *StoreRepository) propertySource(application, profile, label string) (PropertySource, error) {
	key := CompositeKey(application, profile, label)
	properties, err := r.store.Fetch(key)
	if err != nil {
		return PropertySource{}, err
	}
	if properties == nil {
		properties = map[string]string{}
	}
	log.Debug().Str("store", r.store.Name()).Str("key", key).Int("properties", len(properties)).Msg("Fetched property source")
	return PropertySource{Name: r.store.Name() + ":" + key, Properties: properties}, nil
}
