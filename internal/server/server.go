package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/averos/gatekeeper/internal/config"
	"github.com/averos/gatekeeper/internal/handler"
	"github.com/averos/gatekeeper/internal/middleware"
	"github.com/averos/gatekeeper/internal/proxy"
	"github.com/averos/gatekeeper/internal/ratelimit"
	"github.com/averos/gatekeeper/internal/repository"
	"github.com/averos/gatekeeper/internal/service"
	"github.com/averos/gatekeeper/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router       *gin.Engine
	config       *config.Config
	redis        *storage.RedisClient
	postgres     *storage.Postgres
	engine       *ratelimit.Engine
	adminService *service.AdminService
	adminHandler *handler.AdminHandler
	authHandler  *handler.AuthHandler
	proxies      map[string]*proxy.Proxy
	httpServer   *http.Server
}

// New wires the admission engine and its HTTP surface together. The window
// backend is chosen by configuration: redis for a shared consumption view
// across instances, memory for a single instance. A memory store is always
// created as the failover target.
func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres, adminSecret string) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	fallback := ratelimit.NewMemoryStore()

	var store ratelimit.WindowStore = fallback
	if cfg.RateLimit.Backend == "redis" {
		opts := []ratelimit.RedisOption{}
		if timeout := cfg.RedisTimeout(); timeout > 0 {
			opts = append(opts, ratelimit.WithTimeout(timeout))
		}
		redisStore, err := ratelimit.NewRedisStore(redis, opts...)
		if err != nil {
			return nil, err
		}
		store = redisStore
	}

	evaluator := ratelimit.NewEvaluator(store, fallback, nil)
	resolver := ratelimit.NewResolver(cfg.TierLimits(), cfg.EndpointLimits(), cfg.RateLimit.IPLimitPerMinute)
	engine := ratelimit.NewEngine(evaluator, resolver, ratelimit.NewIPLists(), nil)

	ipListRepo := repository.NewIPListRepository(postgres)
	tierRepo := repository.NewTierRepository(postgres)
	adminUserRepo := repository.NewAdminUserRepository(postgres)

	adminService := service.NewAdminService(engine, ipListRepo)
	authService := service.NewAuthService(adminUserRepo, adminSecret, 24)

	s := &Server{
		router:       gin.New(),
		config:       cfg,
		redis:        redis,
		postgres:     postgres,
		engine:       engine,
		adminService: adminService,
		adminHandler: handler.NewAdminHandler(adminService, tierRepo),
		authHandler:  handler.NewAuthHandler(authService),
		proxies:      make(map[string]*proxy.Proxy),
	}

	if err := adminService.LoadLists(context.Background()); err != nil {
		return nil, err
	}

	s.initializeProxies()
	s.setupMiddleware()
	s.setupRoutes(authService)

	go s.consumeEvents()

	return s, nil
}

func (s *Server) initializeProxies() {
	for _, svc := range s.config.Services {
		p, err := proxy.New(svc.Target)
		if err != nil {
			log.Printf("Failed to create proxy for %s: %v", svc.Path, err)
			continue
		}

		s.proxies[svc.Path] = p
		log.Printf("Initialized proxy for %s -> %s", svc.Path, svc.Target)
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.RequestLogger())
}

func (s *Server) setupRoutes(authService *service.AuthService) {
	s.router.GET("/health", s.healthCheck)

	admin := s.router.Group("/admin")
	admin.POST("/login", s.authHandler.Login)

	protected := admin.Group("")
	protected.Use(middleware.RequireAdmin(authService))
	{
		protected.GET("/lists", s.adminHandler.Lists)
		protected.POST("/whitelist", s.adminHandler.AddToWhitelist)
		protected.DELETE("/whitelist/:ip", s.adminHandler.RemoveFromWhitelist)
		protected.POST("/blacklist", s.adminHandler.AddToBlacklist)
		protected.DELETE("/blacklist/:ip", s.adminHandler.RemoveFromBlacklist)
		protected.POST("/limits/reset/:userId", s.adminHandler.ResetUserLimits)
		protected.GET("/tiers", s.adminHandler.Tiers)
	}

	s.setupProxyRoutes()
}

// Proxied routes run the full admission chain; admin and health do not
// consume quota.
func (s *Server) setupProxyRoutes() {
	gate := ratelimit.NewConcurrencyGate()
	chain := []gin.HandlerFunc{
		middleware.RateLimit(s.engine),
		middleware.ConcurrencyLimit(gate, s.config.TierLimits()),
	}

	for path, proxyInstance := range s.proxies {
		p := proxyInstance
		handlers := append(append([]gin.HandlerFunc{}, chain...), func(c *gin.Context) {
			p.Handle(c)
		})

		s.router.Any(path+"/*proxyPath", handlers...)
		s.router.Any(path, handlers...)

		log.Printf("Registered proxy route: %s", path)
	}
}

// consumeEvents drains the engine's notification channel so denials are
// visible in the logs even when nothing else subscribes.
func (s *Server) consumeEvents() {
	for ev := range s.engine.Events() {
		switch ev.Type {
		case ratelimit.EventIPBlacklisted:
			log.Printf("event=%s ip=%s reason=%q endpoint=%s", ev.Type, ev.IP, ev.Reason, ev.Endpoint)
		case ratelimit.EventBurstDetected:
			log.Printf("event=%s user=%s ip=%s limit=%d", ev.Type, ev.UserID, ev.IP, ev.Count)
		default:
			log.Printf("event=%s user=%s ip=%s endpoint=%s limit_type=%s", ev.Type, ev.UserID, ev.IP, ev.Endpoint, ev.LimitType)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "gatekeeper",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)
	log.Printf("Rate limit backend: %s", s.config.RateLimit.Backend)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
