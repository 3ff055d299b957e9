// Package server runs the HTTP side of the configuration server: controller
// registration, the gin engine, authentication and graceful shutdown.
package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/animalet/sargantana-config/internal/snapshot"
	"github.com/animalet/sargantana-config/pkg/config"
	"github.com/animalet/sargantana-config/pkg/environment"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server is one configuration server instance.
type Server struct {
	config        Config
	repository    environment.Repository
	defaults      environment.DefaultsProvider
	authenticator Authenticator
	httpServer    *http.Server
	listener      net.Listener
	controllers   []IController
	hooksMu       sync.Mutex
	shutdownHooks []func() error
}

var (
	registryMu         sync.RWMutex
	controllerRegistry = make(map[string]ControllerFactory)
)

var debug = false

// SetDebug switches the global log level and the gin mode.
func SetDebug(debugEnabled bool) {
	debug = debugEnabled
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}
}

func GetDebug() bool {
	return debug
}

// NewServer creates a server resolving environments with repository. The server
// keeps its own copy of cfg.
func NewServer(cfg Config, repository environment.Repository, defaults environment.DefaultsProvider) *Server {
	s := &Server{
		config:        *snapshot.MustCopy(&cfg),
		repository:    repository,
		defaults:      defaults,
		authenticator: NewUnauthorizedAuthenticator(),
	}
	if s.config.WebServerConfig.BasicAuth != nil {
		s.authenticator = NewBasicAuthenticator(*s.config.WebServerConfig.BasicAuth)
	}
	return s
}

// SetAuthenticator replaces the authenticator protecting controller routes.
// It must be called before Start.
func (s *Server) SetAuthenticator(authenticator Authenticator) {
	s.authenticator = authenticator
}

func addControllerType(typeName string, factory ControllerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	log.Info().Msgf("Registering controller type %q", typeName)
	if _, exists := controllerRegistry[typeName]; exists {
		log.Warn().Msgf("Controller type %q is already registered, overriding", typeName)
	}
	controllerRegistry[typeName] = factory
}

func lookupControllerType(typeName string) (ControllerFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, exists := controllerRegistry[typeName]
	return factory, exists
}

func (s *Server) configureControllers() (controllers []IController, configErrors []error) {
	instanceCounts := make(map[string]int)
	ctx := ControllerContext{
		ServerConfig: s.config.WebServerConfig,
		Repository:   s.repository,
		Defaults:     s.defaults,
	}

	for _, binding := range s.config.ControllerBindings {
		instanceName := binding.Name
		if instanceName == "" {
			instanceCounts[binding.TypeName]++
			if count := instanceCounts[binding.TypeName]; count == 1 {
				instanceName = binding.TypeName
			} else {
				instanceName = fmt.Sprintf("%s-%d", binding.TypeName, count)
			}
		}

		factory, exists := lookupControllerType(binding.TypeName)
		if !exists {
			configErrors = append(configErrors, errors.Errorf("no factory found for controller type %q (instance: %q)", binding.TypeName, instanceName))
			continue
		}

		c, err := newController(ctx, instanceName, binding, factory)
		if err != nil {
			configErrors = append(configErrors, errors.Wrapf(err, "error configuring controller %q of type %q", instanceName, binding.TypeName))
			continue
		}
		controllers = append(controllers, c)
	}
	return controllers, configErrors
}

func newController(ctx ControllerContext, name string, binding ControllerBinding, factory ControllerFactory) (c IController, err error) {
	log.Info().Msgf("Configuring %s controller of type: %s", name, binding.TypeName)
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = errors.Errorf("panic during %s controller configuration, controller was not added: %v", name, r)
		}
	}()

	raw, err := config.Encode(config.YamlFormat, binding.Config)
	if err != nil {
		return nil, err
	}
	return factory(raw, ctx)
}

// StartAndWaitForSignal starts the server and shuts it down gracefully on SIGINT
// or SIGTERM.
func (s *Server) StartAndWaitForSignal() error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.waitForSignal()
}

// Start configures the controllers, builds the engine and starts listening.
// Controllers that cannot be configured are logged and left out.
func (s *Server) Start() error {
	log.Info().Msg("Bootstrapping server...")
	if debug {
		log.Debug().Msgf("Listen address: %q", s.config.WebServerConfig.Address)
		log.Debug().Msg("Expected controllers:")
		for _, binding := range s.config.ControllerBindings {
			log.Debug().Msgf(" - Type: %s, Name: %s", binding.TypeName, binding.Name)
		}
	}

	engine, err := s.buildEngine()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.config.WebServerConfig.Address)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", s.config.WebServerConfig.Address)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: s.config.WebServerConfig.readHeaderTimeout(),
	}

	log.Info().Msgf("Starting server on %s", listener.Addr())
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("Listen error: %s", err)
		}
	}()
	return nil
}

// Addr is the address the server listens on once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) buildEngine() (*gin.Engine, error) {
	controllers, configurationErrors := s.configureControllers()
	if len(configurationErrors) > 0 {
		log.Error().Msg("Configuration errors encountered, affected controllers have been excluded from bootstrap:")
		for _, configErr := range configurationErrors {
			log.Error().Msgf(" - %v", configErr)
		}
	}
	s.controllers = controllers

	engine := gin.New()
	if gin.IsDebugging() {
		log.Info().Msg("Running in debug mode")
		engine.Use(bodyLogMiddleware, gin.ErrorLogger())
	} else {
		log.Info().Msg("Running in release mode")
		if err := engine.SetTrustedProxies(nil); err != nil {
			return nil, err
		}
		engine.Use(gin.ErrorLoggerT(gin.ErrorTypePrivate))
	}
	engine.Use(gin.Logger(), gin.Recovery())
	if security := s.config.WebServerConfig.Security; security != nil {
		engine.Use(security.Middleware(gin.IsDebugging()))
	}

	authMiddleware := s.authenticator.Middleware()
	for _, c := range s.controllers {
		if err := c.Bind(engine, authMiddleware); err != nil {
			return nil, errors.Wrap(err, "failed to bind controller")
		}
		s.AddShutdownHook(c.Close)
	}
	return engine, nil
}

func (s *Server) waitForSignal() error {
	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownChannel)
	log.Info().Msgf("Shutdown signal received (%s)", <-shutdownChannel)
	return s.Shutdown()
}

// AddShutdownHook registers f to run after the HTTP server stopped, in
// registration order.
func (s *Server) AddShutdownHook(f func() error) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.shutdownHooks = append(s.shutdownHooks, f)
}

// Shutdown waits for active requests to complete, then runs the shutdown hooks.
// Hook failures are logged and do not stop the remaining hooks.
func (s *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WebServerConfig.shutdownTimeout())
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "forced shutdown")
		}
	}

	log.Info().Msg("Executing shutdown hooks...")
	s.hooksMu.Lock()
	hooks := s.shutdownHooks
	s.shutdownHooks = nil
	s.hooksMu.Unlock()
	for _, hook := range hooks {
		if err := hook(); err != nil {
			log.Error().Msgf("Error during shutdown hook: %s", err)
		}
	}

	log.Info().Msg("Server exited gracefully")
	return nil
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func bodyLogMiddleware(c *gin.Context) {
	blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
	c.Writer = blw
	c.Next()
	log.Debug().Msgf("Response body: %s", blw.body.String())
}
