//go:build unit

package server

import (
	"net/http"
	"net/http/httptest"

	"github.com/animalet/sargantana-config/pkg/config"
	"github.com/animalet/sargantana-config/pkg/environment"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockController implements IController
type MockController struct {
	BindFunc  func(*gin.Engine, gin.HandlerFunc) error
	CloseFunc func() error
}

func (m *MockController) Bind(engine *gin.Engine, authMiddleware gin.HandlerFunc) error {
	if m.BindFunc != nil {
		return m.BindFunc(engine, authMiddleware)
	}
	return nil
}

func (m *MockController) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

type TestConfig struct {
	Field string `yaml:"field"`
}

func (c TestConfig) Validate() error {
	if c.Field == "invalid" {
		return errors.New("invalid config")
	}
	return nil
}

type nopRepository struct{}

func (nopRepository) FindOne(application, profile, label string) (*environment.Environment, error) {
	return environment.NewEnvironment(application, environment.ParseProfiles(profile), label), nil
}

func testConfig(bindings ...ControllerBinding) Config {
	return Config{
		WebServerConfig:    WebServerConfig{Address: "localhost:0"},
		ControllerBindings: bindings,
	}
}

func routeController(path string, protected bool) *MockController {
	return &MockController{BindFunc: func(engine *gin.Engine, auth gin.HandlerFunc) error {
		handlers := []gin.HandlerFunc{}
		if protected {
			handlers = append(handlers, auth)
		}
		handlers = append(handlers, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		engine.GET(path, handlers...)
		return nil
	}}
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

var _ = Describe("Server", func() {
	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
	})

	Context("Controller registry", func() {
		It("should decode, validate and hand the configuration to the factory", func() {
			var received *TestConfig
			RegisterController("registry-success", func(cfg *TestConfig, ctx ControllerContext) (IController, error) {
				received = cfg
				Expect(ctx.Repository).NotTo(BeNil())
				return &MockController{}, nil
			})

			factory, exists := lookupControllerType("registry-success")
			Expect(exists).To(BeTrue())

			raw, err := config.Encode(config.YamlFormat, map[string]any{"field": "value"})
			Expect(err).NotTo(HaveOccurred())
			c, err := factory(raw, ControllerContext{Repository: nopRepository{}})
			Expect(err).NotTo(HaveOccurred())
			Expect(c).NotTo(BeNil())
			Expect(received.Field).To(Equal("value"))
		})

		It("should report decoding failures", func() {
			RegisterController("registry-unmarshal", func(cfg *TestConfig, ctx ControllerContext) (IController, error) {
				return &MockController{}, nil
			})
			factory, _ := lookupControllerType("registry-unmarshal")

			_, err := factory(config.ModuleRawConfig("invalid: yaml: :"), ControllerContext{})
			Expect(err).To(MatchError(ContainSubstring("failed to unmarshal configuration")))
		})

		It("should report validation failures", func() {
			RegisterController("registry-invalid", func(cfg *TestConfig, ctx ControllerContext) (IController, error) {
				return &MockController{}, nil
			})
			factory, _ := lookupControllerType("registry-invalid")

			_, err := factory(config.ModuleRawConfig("field: invalid"), ControllerContext{})
			Expect(err).To(MatchError(ContainSubstring("invalid config")))
		})

		It("should propagate factory errors", func() {
			RegisterController("registry-error", func(cfg *TestConfig, ctx ControllerContext) (IController, error) {
				return nil, errors.New("factory error")
			})
			factory, _ := lookupControllerType("registry-error")

			_, err := factory(config.ModuleRawConfig("field: value"), ControllerContext{})
			Expect(err).To(MatchError("factory error"))
		})
	})

	Context("Controller configuration", func() {
		It("should name unnamed instances after their type", func() {
			var names []string
			addControllerType("naming", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				return &MockController{}, nil
			})
			addControllerType("naming-broken", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				return nil, errors.New("broken")
			})

			s := NewServer(testConfig(
				ControllerBinding{TypeName: "naming", Config: map[string]any{}},
				ControllerBinding{TypeName: "naming", Config: map[string]any{}},
				ControllerBinding{TypeName: "naming-broken", Config: map[string]any{}},
				ControllerBinding{TypeName: "naming-broken", Name: "custom", Config: map[string]any{}},
			), nopRepository{}, environment.StandardDefaults())

			controllers, configErrors := s.configureControllers()
			Expect(controllers).To(HaveLen(2))
			for _, err := range configErrors {
				names = append(names, err.Error())
			}
			Expect(names).To(ConsistOf(
				ContainSubstring(`"naming-broken" of type`),
				ContainSubstring(`"custom" of type`),
			))
		})

		It("should exclude unknown types and panicking factories", func() {
			addControllerType("panicking", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				panic("factory panic")
			})

			s := NewServer(testConfig(
				ControllerBinding{TypeName: "nonexistent", Config: map[string]any{}},
				ControllerBinding{TypeName: "panicking", Config: map[string]any{}},
			), nopRepository{}, environment.StandardDefaults())

			controllers, configErrors := s.configureControllers()
			Expect(controllers).To(BeEmpty())
			Expect(configErrors).To(HaveLen(2))
			Expect(configErrors[0]).To(MatchError(ContainSubstring("no factory found")))
			Expect(configErrors[1]).To(MatchError(ContainSubstring("panic during panicking controller configuration")))
		})

		It("should pass nested controller configuration through", func() {
			var received *TestConfig
			RegisterController("nested", func(cfg *TestConfig, ctx ControllerContext) (IController, error) {
				received = cfg
				return &MockController{}, nil
			})

			s := NewServer(testConfig(ControllerBinding{TypeName: "nested", Config: map[string]any{"field": "from-binding"}}),
				nopRepository{}, environment.StandardDefaults())
			_, configErrors := s.configureControllers()
			Expect(configErrors).To(BeEmpty())
			Expect(received.Field).To(Equal("from-binding"))
		})

		It("should keep its own copy of the configuration", func() {
			bindings := ControllerBindings{{TypeName: "naming", Config: map[string]any{"field": "value"}}}
			s := NewServer(testConfig(bindings...), nopRepository{}, environment.StandardDefaults())

			bindings[0].Config["field"] = "changed"
			Expect(s.config.ControllerBindings[0].Config["field"]).To(Equal("value"))
		})
	})

	Context("Engine", func() {
		It("should reject protected routes without an authenticator", func() {
			addControllerType("engine-protected", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				return routeController("/protected", true), nil
			})

			s := NewServer(testConfig(ControllerBinding{TypeName: "engine-protected", Config: map[string]any{}}),
				nopRepository{}, environment.StandardDefaults())
			engine, err := s.buildEngine()
			Expect(err).NotTo(HaveOccurred())

			Expect(serve(engine, httptest.NewRequest(http.MethodGet, "/protected", nil)).Code).To(Equal(http.StatusUnauthorized))
		})

		It("should check basic credentials when configured", func() {
			addControllerType("engine-basic", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				return routeController("/protected", true), nil
			})

			cfg := testConfig(ControllerBinding{TypeName: "engine-basic", Config: map[string]any{}})
			cfg.WebServerConfig.BasicAuth = &BasicAuthConfig{Users: map[string]string{"client": "s3cret"}}
			engine, err := NewServer(cfg, nopRepository{}, environment.StandardDefaults()).buildEngine()
			Expect(err).NotTo(HaveOccurred())

			w := serve(engine, httptest.NewRequest(http.MethodGet, "/protected", nil))
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(w.Header().Get("WWW-Authenticate")).To(ContainSubstring("sargantana-config"))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.SetBasicAuth("client", "s3cret")
			Expect(serve(engine, req).Code).To(Equal(http.StatusOK))

			req = httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.SetBasicAuth("client", "wrong")
			Expect(serve(engine, req).Code).To(Equal(http.StatusUnauthorized))
		})

		It("should leave unprotected routes open", func() {
			addControllerType("engine-open", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				return routeController("/open", false), nil
			})

			s := NewServer(testConfig(ControllerBinding{TypeName: "engine-open", Config: map[string]any{}}),
				nopRepository{}, environment.StandardDefaults())
			engine, err := s.buildEngine()
			Expect(err).NotTo(HaveOccurred())
			Expect(serve(engine, httptest.NewRequest(http.MethodGet, "/open", nil)).Code).To(Equal(http.StatusOK))
		})

		It("should apply the security settings", func() {
			addControllerType("engine-secure", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				return routeController("/open", false), nil
			})

			cfg := testConfig(ControllerBinding{TypeName: "engine-secure", Config: map[string]any{}})
			cfg.WebServerConfig.Security = &SecurityConfig{
				AllowedHosts:       []string{"config.example.com"},
				FrameDeny:          true,
				ContentTypeNosniff: true,
			}
			engine, err := NewServer(cfg, nopRepository{}, environment.StandardDefaults()).buildEngine()
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "http://config.example.com/open", nil)
			w := serve(engine, req)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("X-Frame-Options")).To(Equal("DENY"))
			Expect(w.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))

			req = httptest.NewRequest(http.MethodGet, "http://evil.example.com/open", nil)
			Expect(serve(engine, req).Code).To(Equal(http.StatusForbidden))
		})

		It("should fail when a controller cannot bind", func() {
			addControllerType("engine-bind-error", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				return &MockController{BindFunc: func(*gin.Engine, gin.HandlerFunc) error {
					return errors.New("route conflict")
				}}, nil
			})

			s := NewServer(testConfig(ControllerBinding{TypeName: "engine-bind-error", Config: map[string]any{}}),
				nopRepository{}, environment.StandardDefaults())
			_, err := s.buildEngine()
			Expect(err).To(MatchError(ContainSubstring("route conflict")))
		})
	})

	Context("Lifecycle", func() {
		It("should start, serve and shut down running the hooks", func() {
			hookCalls := 0
			addControllerType("lifecycle", func(raw config.ModuleRawConfig, ctx ControllerContext) (IController, error) {
				c := routeController("/ping", false)
				c.CloseFunc = func() error {
					hookCalls++
					return errors.New("hook error")
				}
				return c, nil
			})

			s := NewServer(testConfig(ControllerBinding{TypeName: "lifecycle", Config: map[string]any{}}),
				nopRepository{}, environment.StandardDefaults())
			extra := false
			s.AddShutdownHook(func() error {
				extra = true
				return nil
			})
			Expect(s.Start()).To(Succeed())
			Expect(s.Addr()).NotTo(BeEmpty())

			resp, err := http.Get("http://" + s.Addr() + "/ping")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			Expect(s.Shutdown()).To(Succeed())
			Expect(hookCalls).To(Equal(1))
			Expect(extra).To(BeTrue())
		})

		It("should fail to start on an unusable address", func() {
			s := NewServer(testConfig(), nopRepository{}, environment.StandardDefaults())
			Expect(s.Start()).To(Succeed())
			DeferCleanup(s.Shutdown)

			cfg := testConfig()
			cfg.WebServerConfig.Address = s.Addr()
			Expect(NewServer(cfg, nopRepository{}, environment.StandardDefaults()).Start()).To(MatchError(ContainSubstring("unable to listen")))
		})

		It("should shut down without having started", func() {
			Expect(NewServer(testConfig(), nopRepository{}, environment.StandardDefaults()).Shutdown()).To(Succeed())
		})
	})

	Context("SetDebug", func() {
		It("should configure log level and gin mode", func() {
			SetDebug(true)
			Expect(GetDebug()).To(BeTrue())
			Expect(gin.Mode()).To(Equal(gin.DebugMode))
			Expect(zerolog.GlobalLevel()).To(Equal(zerolog.DebugLevel))

			SetDebug(false)
			Expect(GetDebug()).To(BeFalse())
			Expect(gin.Mode()).To(Equal(gin.ReleaseMode))
			Expect(zerolog.GlobalLevel()).To(Equal(zerolog.InfoLevel))
		})
	})
})
