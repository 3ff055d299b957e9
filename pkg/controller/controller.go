// Package controller holds the controllers served by the configuration server.
// Controllers register themselves with the server controller registry by type.
package controller

import (
	"github.com/animalet/sargantana-config/pkg/server"
)

// EnvironmentControllerType is the controller type name used in "controllers" bindings.
const EnvironmentControllerType = "environment"

// RegisterAll registers every controller type of this package.
func RegisterAll() {
	server.RegisterController(EnvironmentControllerType, NewEnvironmentController)
}
