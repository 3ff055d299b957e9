package controller

import (
	"net/http"
	"strings"

	"github.com/animalet/sargantana-config/internal/snapshot"
	"github.com/animalet/sargantana-config/pkg/environment"
	"github.com/animalet/sargantana-config/pkg/server"
	"github.com/animalet/sargantana-config/pkg/server/middleware"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EnvironmentControllerConfig configures one environment endpoint.
type EnvironmentControllerConfig struct {
	// Path prefixes the routes, "/" by default.
	Path string `yaml:"path,omitempty"`
	// Auth protects the routes with the server authenticator.
	Auth bool `yaml:"auth,omitempty"`
}

func (e EnvironmentControllerConfig) Validate() error {
	if e.Path != "" && !strings.HasPrefix(e.Path, "/") {
		return errors.Errorf("path %q must start with /", e.Path)
	}
	if strings.ContainsAny(e.Path, ":*") {
		return errors.Errorf("path %q must not contain route parameters", e.Path)
	}
	return nil
}

// NewEnvironmentController serves the environments of ctx.Repository.
func NewEnvironmentController(cfg *EnvironmentControllerConfig, ctx server.ControllerContext) (server.IController, error) {
	if ctx.Repository == nil {
		return nil, errors.New("environment controller needs a repository")
	}
	c := snapshot.MustCopy(cfg)

	path := strings.TrimSuffix(c.Path, "/")
	log.Info().
		Str("path", path+"/").
		Bool("auth", c.Auth).
		Msg("Environment endpoint configured")

	return &environmentController{repository: ctx.Repository, path: path, auth: c.Auth}, nil
}

type environmentController struct {
	repository environment.Repository
	path       string
	auth       bool
}

// Bind registers
//
//	GET <path>/:application/:profile
//	GET <path>/:application/:profile/:label
func (e *environmentController) Bind(engine *gin.Engine, authMiddleware gin.HandlerFunc) error {
	handlers := []gin.HandlerFunc{middleware.NoStore()}
	if e.auth {
		handlers = append(handlers, authMiddleware)
	}
	group := engine.Group(e.path, handlers...)
	group.GET("/:application/:profile", e.findOne)
	group.GET("/:application/:profile/:label", e.findOne)
	return nil
}

func (e *environmentController) Close() error {
	return nil
}

func (e *environmentController) findOne(c *gin.Context) {
	application := environment.Normalize(c.Param("application"))
	profile := c.Param("profile")
	label := environment.Normalize(c.Param("label"))

	env, err := e.repository.FindOne(application, profile, label)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, environment.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		log.Error().Err(err).
			Str("application", application).
			Str("profile", profile).
			Str("label", label).
			Msg("Unable to resolve environment")
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, env)
}
