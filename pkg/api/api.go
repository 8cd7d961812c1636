// Package api hosts the portal's HTTP server: the JSON API consumed by the
// frontend, the SPA asset handler, and the bearer-token middleware guarding
// protected routes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/config"
	"github.com/openwaitlist/waitlist/pkg/identity"
	"github.com/openwaitlist/waitlist/pkg/system"
)

// APIController is a mountable group of routes under /api.
type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	gin    *gin.Engine
	config config.Config
	log    *zap.Logger
	auth   *AuthHandler
}

// NewServer assembles the gin engine: request logging and panic recovery via
// ginzap, CORS for the dev frontend in debug mode, the SPA fallback handler,
// and the built-in config/health endpoints.
func NewServer(log *zap.Logger, cfg config.Config, debug bool, auth *AuthHandler) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		requestLogger(log.Sugar()),
	)
	if len(cfg.Server.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.Server.TrustedProxies)
	}

	engine.NoRoute(ServeSPA("/", cfg.Frontend.SPADir))

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "127.0.0.1:8080"},
				AllowMethods: []string{"GET", "PUT", "PATCH", "POST", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:    engine,
		config: cfg,
		log:    log,
		auth:   auth,
	}

	engine.GET("healthz", s.health)
	engine.GET("api/config", s.getConfig)

	return s
}

// requestLogger installs a request-scoped logger into the gin context, for
// handlers to retrieve via system.GetReqLogger.
func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(system.ReqLoggerKey, log.With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
		))
		c.Next()
	}
}

// RegisterAll mounts the controllers under /api.
func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler exposes the underlying engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// FrontendConfig is what the SPA needs to bootstrap its own identity client.
type FrontendConfig struct {
	OIDCAuthority string `json:"oidcAuthority"`
	OIDCRealm     string `json:"oidcRealm"`
	OIDCClientID  string `json:"oidcClientID"`
	BrandingName  string `json:"brandingName"`
	BaseURL       string `json:"baseURL"`
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, FrontendConfig{
		OIDCAuthority: s.config.Keycloak.Authority(),
		OIDCRealm:     s.config.Keycloak.Realm,
		OIDCClientID:  s.config.Keycloak.ClientID,
		BrandingName:  s.config.Frontend.BrandingName,
		// Strip identity-redirect noise so the SPA never re-enters the
		// login round trip from a stale location.
		BaseURL: identity.NormalizeLocation(s.config.Frontend.BaseURL),
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
