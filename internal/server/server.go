// Package server wires the Open Zaak components into one gin engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/open-zaak/open-zaak/backend/go-services/handlers"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/accounts"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/besluiten"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/config"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	dochandler "github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/handler"
	docservice "github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/service"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/notificaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/schema"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/sessions"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/storage"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/metrics"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/middleware"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

// Check reports whether a backend is reachable.
type Check func(ctx context.Context) error

// Deps are the backends the server runs on. Connect builds them from the configuration;
// tests fill them in directly.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Documents documenten.Store
	Content   storage.ContentStore
	Accounts  accounts.Repository
	Notifier  *notificaties.Notifier
	Fetcher   loosefk.Fetcher
	Loader    *schema.Loader
	// Redis is optional; it backs the rate limiter and admin logouts when set.
	Redis *redis.Client
	// AdminVerifier checks the OIDC tokens of /admin/api. Without it the admin API is not mounted.
	AdminVerifier middleware.Verifier
	Registry      *prometheus.Registry
	Checks        map[string]Check
}

type Server struct {
	Engine       *gin.Engine
	Router       *urls.Router
	Catalogi     *catalogi.Service
	Documenten   *docservice.Service
	Besluiten    *besluiten.Service
	Autorisaties *autorisaties.Service
	Accounts     *accounts.Service

	deps    Deps
	started time.Time
}

// New builds the engine with all component APIs mounted.
func New(d Deps) (*Server, error) {
	if d.Config == nil || d.DB == nil || d.Documents == nil {
		return nil, errors.New("server: config, database and document store are required")
	}
	if d.Content == nil {
		d.Content = storage.NewMemoryStorage()
	}
	if d.Accounts == nil {
		d.Accounts = accounts.NewMemoryRepository()
	}
	if d.Notifier == nil {
		d.Notifier = notificaties.NewNotifier(nil, notificaties.NewMemoryFailedStore(), notificaties.Disabled(true))
	}
	if d.Loader == nil {
		d.Loader = schema.NewLoader(nil)
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
		metrics.RegisterCollectors(d.Registry)
	}
	cfg := d.Config

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors())

	router := urls.NewRouter(cfg.Server.SiteURL)
	s := &Server{
		Engine:       r,
		Router:       router,
		Catalogi:     catalogi.NewService(catalogi.NewStore(d.DB), router),
		Documenten:   docservice.New(d.Documents, d.Content),
		Autorisaties: autorisaties.NewService(autorisaties.NewStore(d.DB)),
		Accounts:     accounts.NewService(d.Accounts),
		deps:         d,
		started:      time.Now(),
	}
	s.Besluiten = besluiten.NewService(besluiten.NewStore(d.DB), s.Catalogi, d.Documents, router, d.Fetcher)

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	handlers.RegisterSwagger(r)

	s.mountAPIs()
	s.mountAdmin()
	return s, nil
}

// zgw is the middleware chain of the component APIs: ZGW token, then rate limit.
func (s *Server) zgw() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{middleware.AuthMiddleware(tokens.NewVerifier(s.Autorisaties.Store(), s.deps.Config.JWT.Leeway))}
	if l := s.rateLimiter(); l != nil {
		chain = append(chain, l)
	}
	return chain
}

func (s *Server) rateLimiter() gin.HandlerFunc {
	rl := s.deps.Config.RateLimit
	if !rl.Enabled {
		return nil
	}
	if s.deps.Redis != nil {
		return middleware.RedisRateLimitMiddleware(s.deps.Redis, rl.RPS, rl.Burst, rl.Window)
	}
	return middleware.RateLimitMiddleware(rl.RPS, rl.Burst)
}

func (s *Server) mountAPIs() {
	cfg, d := s.deps.Config, s.deps
	guard := autorisaties.Guard(s.Autorisaties.RequireScope)
	hosts := cfg.Server.AllowedHosts

	catalogi.RegisterRoutes(s.Engine.Group("/catalogi/api/v1", s.zgw()...), s.Catalogi, s.Router, guard, hosts...)

	dochandler.RegisterRoutes(s.Engine.Group("/documenten/api/v1", s.zgw()...), dochandler.Config{
		Router:       s.Router,
		Service:      s.Documenten,
		Catalogi:     s.Catalogi,
		Notifier:     d.Notifier,
		Guard:        guard,
		ZTCSpecURL:   cfg.APISpecs.ZTC,
		Fetcher:      d.Fetcher,
		Loader:       d.Loader,
		AllowedHosts: hosts,
		InUse:        s.Besluiten.DocumentInUse,
	})

	besluiten.RegisterRoutes(s.Engine.Group("/besluiten/api/v1", s.zgw()...), besluiten.Config{
		Router:       s.Router,
		Service:      s.Besluiten,
		Catalogi:     s.Catalogi,
		Documenten:   d.Documents,
		Notifier:     d.Notifier,
		Guard:        guard,
		ZTCSpecURL:   cfg.APISpecs.ZTC,
		DRCSpecURL:   cfg.APISpecs.DRC,
		Fetcher:      d.Fetcher,
		Loader:       d.Loader,
		AllowedHosts: hosts,
	})
}

func (s *Server) mountAdmin() {
	if s.deps.AdminVerifier == nil {
		logger.Warnf("admin API disabled: no OIDC verifier configured")
		return
	}
	revocations := sessions.NewRevocations(s.deps.Redis)
	ver := &sessions.Verifier{Next: s.deps.AdminVerifier, Revocations: revocations}
	g := s.Engine.Group("/admin/api",
		middleware.AuthMiddleware(ver),
		middleware.RequireGroup(s.deps.Config.Admin.Group),
	)
	autorisaties.RegisterAdminRoutes(g, s.Autorisaties, s.Catalogi)
	notificaties.RegisterAdminRoutes(g, s.deps.Notifier)
	accounts.RegisterAdminRoutes(g, s.Accounts, revocations)
}

// ready returns 200 only when every configured backend answers.
func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	deps := map[string]bool{"database": true}
	if sqlDB, err := s.deps.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		deps["database"] = false
	}
	for name, check := range s.deps.Checks {
		err := check(ctx)
		if err != nil {
			logger.Warnf("readiness check %s: %v", name, err)
		}
		deps[name] = err == nil
	}
	for _, ok := range deps {
		if !ok {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(s.started).String()})
}

// Run serves until ctx is cancelled and then shuts down gracefully. A configured
// resend schedule runs alongside.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.deps.Config
	if cfg.Notifications.ResendSchedule != "" && s.deps.Notifier.Enabled() {
		sched, err := notificaties.NewScheduler(s.deps.Notifier, cfg.Notifications.ResendSchedule)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting Open Zaak on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
