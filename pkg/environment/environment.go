// Package environment resolves application configurations ("environments") out of
// key-value stores.
//
// An environment is requested by application name, a comma-delimited list of
// profiles and a label. Each profile becomes one lookup in the store under the
// composite key application[-profile][-label], and each lookup becomes one
// property source of the returned Environment, in request order.
package environment

import (
	"strings"
)

// Environment is the configuration served for one (application, profiles, label)
// request. The JSON form is the one configuration clients expect.
type Environment struct {
	Application     string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	Label           string           `json:"label"`
	Version         *string          `json:"version"`
	State           *string          `json:"state"`
	PropertySources []PropertySource `json:"propertySources"`
}

// NewEnvironment returns an Environment without property sources.
func NewEnvironment(application string, profiles []string, label string) *Environment {
	env := &Environment{
		Application:     application,
		Profiles:        make([]string, len(profiles)),
		Label:           label,
		PropertySources: make([]PropertySource, 0, len(profiles)),
	}
	copy(env.Profiles, profiles)
	return env
}

// Add appends source after the existing property sources.
func (e *Environment) Add(source PropertySource) {
	e.PropertySources = append(e.PropertySources, source)
}

// PropertySource is one named layer of flat properties.
type PropertySource struct {
	// Name identifies where the properties came from, e.g. "redis:app-dev-master".
	Name       string            `json:"name"`
	Properties map[string]string `json:"source"`
}

// Repository finds environments. Empty arguments select the repository defaults.
type Repository interface {
	FindOne(application, profile, label string) (*Environment, error)
}

// DefaultsProvider supplies the values used for omitted request arguments.
type DefaultsProvider interface {
	DefaultApplicationName() string
	DefaultProfile() string
	DefaultLabel() string
}

// Defaults is the "defaults" configuration module. It implements DefaultsProvider.
type Defaults struct {
	ApplicationName string `yaml:"application_name" json:"application_name" toml:"application_name"`
	Profile         string `yaml:"profile" json:"profile" toml:"profile"`
	Label           string `yaml:"label" json:"label" toml:"label"`
}

// StandardDefaults are used when no "defaults" module is configured.
func StandardDefaults() Defaults {
	return Defaults{ApplicationName: "application", Profile: "default"}
}

// Validate accepts any combination: defaults are substituted verbatim, empty included.
func (d Defaults) Validate() error {
	return nil
}

// DefaultApplicationName is used when a request names no application.
func (d Defaults) DefaultApplicationName() string { return d.ApplicationName }

// DefaultProfile is used when a request names no profiles.
func (d Defaults) DefaultProfile() string { return d.Profile }

// DefaultLabel is used when a request names no label.
func (d Defaults) DefaultLabel() string { return d.Label }

// ParseProfiles splits a comma-delimited profile list. Tokens are kept as they
// appear between commas, untrimmed and including empty ones ("dev," gives "dev"
// and ""). An empty list gives no profiles at all.
func ParseProfiles(profile string) []string {
	if profile == "" {
		return []string{}
	}
	return strings.Split(profile, ",")
}

// CompositeKey builds the store key of one profile: application, then "-profile"
// and "-label" for the parts that are not empty.
func CompositeKey(application, profile, label string) string {
	var b strings.Builder
	b.Grow(len(application) + len(profile) + len(label) + 2)
	b.WriteString(application)
	if profile != "" {
		b.WriteByte('-')
		b.WriteString(profile)
	}
	if label != "" {
		b.WriteByte('-')
		b.WriteString(label)
	}
	return b.String()
}

// Normalize turns the "(_)" placeholder used in URL segments back into "/", so
// labels such as "feature(_)login" address the branch "feature/login".
func Normalize(segment string) string {
	return strings.ReplaceAll(segment, "(_)", "/")
}
