package environment

import (
	"github.com/pkg/errors"
)

// Composite chains repositories: the first one shapes the Environment and the
// property sources of the others are appended after its own, in order.
type Composite struct {
	repositories []Repository
}

// NewComposite queries repositories in order. At least one is required.
func NewComposite(repositories ...Repository) (*Composite, error) {
	if len(repositories) == 0 {
		return nil, errors.New("a composite repository needs at least one repository")
	}
	return &Composite{repositories: repositories}, nil
}

// FindOne queries every repository in order and fails on the first error.
func (c *Composite) FindOne(application, profile, label string) (*Environment, error) {
	var env *Environment
	for i, repository := range c.repositories {
		found, err := repository.FindOne(application, profile, label)
		if err != nil {
			return nil, errors.Wrapf(err, "repository %d of composite failed", i)
		}
		if env == nil {
			env = found
			continue
		}
		for _, source := range found.PropertySources {
			env.Add(source)
		}
	}
	return env, nil
}
