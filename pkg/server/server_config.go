package server

import (
	"net"
	"time"

	"github.com/animalet/sargantana-config/pkg/config"
	"github.com/pkg/errors"
)

// WebServerConfig is the "server" configuration module.
type WebServerConfig struct {
	Address string `yaml:"address" json:"address" toml:"address"`
	// ReadHeaderTimeout defaults to 10s.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout,omitempty" json:"read_header_timeout,omitempty" toml:"read_header_timeout,omitempty"`
	// ShutdownTimeout bounds the graceful shutdown, 30s by default.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" toml:"shutdown_timeout,omitempty"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty" toml:"basic_auth,omitempty"`
	Security  *SecurityConfig  `yaml:"security,omitempty" json:"security,omitempty" toml:"security,omitempty"`
}

// Validate checks if the WebServerConfig has all required fields set.
func (c WebServerConfig) Validate() error {
	if c.Address == "" {
		return errors.New("address must be set and non-empty")
	}
	if _, err := net.ResolveTCPAddr("tcp", c.Address); err != nil {
		return errors.Wrap(err, "invalid address")
	}
	if c.ReadHeaderTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.New("timeouts must be non-negative")
	}
	if c.BasicAuth != nil {
		if err := c.BasicAuth.Validate(); err != nil {
			return errors.Wrap(err, "basic_auth configuration is invalid")
		}
	}
	return nil
}

func (c WebServerConfig) readHeaderTimeout() time.Duration {
	if c.ReadHeaderTimeout == 0 {
		return 10 * time.Second
	}
	return c.ReadHeaderTimeout
}

func (c WebServerConfig) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout == 0 {
		return 30 * time.Second
	}
	return c.ShutdownTimeout
}

// BasicAuthConfig protects the routes of controllers declared with auth enabled.
type BasicAuthConfig struct {
	Realm string `yaml:"realm,omitempty" json:"realm,omitempty" toml:"realm,omitempty"`
	// Users maps user names to passwords, usually ${vault:...} references.
	Users map[string]string `yaml:"users" json:"users" toml:"users"`
}

func (b BasicAuthConfig) Validate() error {
	if len(b.Users) == 0 {
		return errors.New("at least one user is required")
	}
	for user, password := range b.Users {
		if user == "" || password == "" {
			return errors.Errorf("user %q needs a non-empty name and password", user)
		}
	}
	return nil
}

// ControllerBinding declares one controller instance.
type ControllerBinding struct {
	TypeName string `yaml:"type" json:"type" toml:"type"`
	// Name is optional and generated from the type when empty.
	Name   string         `yaml:"name,omitempty" json:"name,omitempty" toml:"name,omitempty"`
	Config map[string]any `yaml:"config" json:"config" toml:"config"`
}

// Validate checks if the ControllerBinding has all required fields set.
func (c ControllerBinding) Validate() error {
	if c.TypeName == "" {
		return errors.New("controller type must be set and non-empty")
	}
	if c.Config == nil {
		return errors.New("controller config must be provided")
	}
	return nil
}

// ControllerBindings is the "controllers" configuration module.
type ControllerBindings []ControllerBinding

func (c ControllerBindings) Validate() error {
	var validationErrors []error
	for i, binding := range c {
		if err := binding.Validate(); err != nil {
			validationErrors = append(validationErrors, errors.Wrapf(err, "controller binding at index %d is invalid", i))
		}
	}

	if len(validationErrors) > 0 {
		return errors.Errorf("configuration validation failed: %v", validationErrors)
	}
	return nil
}

// Config gathers the "server" and "controllers" modules.
type Config struct {
	WebServerConfig    WebServerConfig
	ControllerBindings ControllerBindings
}

func (c Config) Validate() error {
	if err := c.WebServerConfig.Validate(); err != nil {
		return errors.Wrap(err, "server configuration is invalid")
	}
	return c.ControllerBindings.Validate()
}

// LoadConfig reads the "server" module, which is required, and the optional
// "controllers" module.
func LoadConfig(cfg *config.Config) (*Config, error) {
	webServerConfig, err := config.Get[WebServerConfig](cfg, "server")
	if err != nil {
		return nil, err
	}
	if webServerConfig == nil {
		return nil, errors.New(`missing "server" configuration module`)
	}

	bindings, err := config.Get[ControllerBindings](cfg, "controllers")
	if err != nil {
		return nil, err
	}

	result := &Config{WebServerConfig: *webServerConfig}
	if bindings != nil {
		result.ControllerBindings = *bindings
	}
	return result, nil
}
