package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/averos/gatekeeper/internal/config"
	"github.com/averos/gatekeeper/internal/middleware"
	"github.com/averos/gatekeeper/internal/models"
	"github.com/averos/gatekeeper/internal/repository"
	"github.com/averos/gatekeeper/internal/server"
	"github.com/averos/gatekeeper/internal/service"
	"github.com/averos/gatekeeper/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	adminSecret := os.Getenv("ADMIN_JWT_SECRET")
	if adminSecret == "" {
		log.Fatal("ADMIN_JWT_SECRET must be set")
	}

	var redis *storage.RedisClient
	if cfg.RateLimit.Backend == "redis" {
		redis, err = storage.NewRedis(
			cfg.Redis.Addr(),
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redis.Close()

		log.Println("Connected to redis successfully")
	}

	postgres, err := storage.NewPostgres(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seedTiers(cfg, postgres)
	bootstrapAdmin(postgres, adminSecret)

	middleware.InitRequestLogger(postgres, 1000)

	srv, err := server.New(cfg, redis, postgres, adminSecret)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// seedTiers mirrors the configured tier table into Postgres for operational
// tooling. Failure is logged, not fatal; the in-process config still applies.
func seedTiers(cfg *config.Config, postgres *storage.Postgres) {
	rows := make([]models.RateLimitTier, 0, len(cfg.RateLimit.Tiers))
	for name, t := range cfg.RateLimit.Tiers {
		rows = append(rows, models.RateLimitTier{
			Name:              name,
			RequestsPerMinute: t.RequestsPerMinute,
			RequestsPerHour:   t.RequestsPerHour,
			BurstSize:         t.BurstSize,
			MaxConcurrent:     t.MaxConcurrent,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repository.NewTierRepository(postgres).Seed(ctx, rows); err != nil {
		log.Printf("Failed to seed tier table: %v", err)
	}
}

// bootstrapAdmin creates the initial admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD when both are set. Subsequent starts with the same email are
// a no-op.
func bootstrapAdmin(postgres *storage.Postgres, adminSecret string) {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	auth := service.NewAuthService(repository.NewAdminUserRepository(postgres), adminSecret, 24)
	if err := auth.Register(ctx, email, password, "bootstrap"); err != nil {
		log.Printf("Admin bootstrap skipped: %v", err)
		return
	}

	log.Printf("Created admin account %s", email)
}
