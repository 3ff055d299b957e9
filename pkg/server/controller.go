package server

import (
	"github.com/animalet/sargantana-config/pkg/config"
	"github.com/animalet/sargantana-config/pkg/environment"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// IController is implemented by every component serving routes on the server.
type IController interface {
	// Bind registers the controller routes. authMiddleware protects the routes
	// that require authentication.
	Bind(engine *gin.Engine, authMiddleware gin.HandlerFunc) error

	// Close releases the resources held by the controller.
	Close() error
}

// ControllerContext provides runtime dependencies to controllers during
// instantiation, apart from their own configuration.
type ControllerContext struct {
	ServerConfig WebServerConfig

	// Repository resolves environments; shared by every controller.
	Repository environment.Repository

	// Defaults are the values the repository substitutes for omitted arguments.
	Defaults environment.DefaultsProvider
}

// ControllerFactory creates a controller from its raw YAML configuration.
type ControllerFactory func(controllerConfig config.ModuleRawConfig, ctx ControllerContext) (IController, error)

// RegisterController registers a controller type whose configuration decodes into T.
// It replaces any factory previously registered under typeName.
func RegisterController[T config.Validatable](typeName string, factory func(cfg *T, ctx ControllerContext) (IController, error)) {
	addControllerType(typeName, func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
		cfg, err := config.Unmarshal[T](config.YamlFormat, raw)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal configuration")
		}
		return factory(cfg, ctx)
	})
}
