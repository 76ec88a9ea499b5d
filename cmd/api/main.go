// Package main provides the entry point for the Inkwell API server
// @title Inkwell API
// @version 1.0
// @description Inkwell blog platform API server.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token authentication
// @Security BearerAuth
package main

import (
	"context"
	"flag"
	"inkwell/internal/api/handlers"
	"inkwell/internal/api/routes"
	"inkwell/internal/api/server"
	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/email"
	"inkwell/internal/pwned"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"inkwell/internal/repository/memory"
	"inkwell/internal/repository/postgres"
	"inkwell/internal/scheduler"
	"inkwell/internal/validation"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "inkwell:ratelimit"

func main() {
	// Parse command line flags
	envFile := flag.String("env", ".env", "Path to env file")
	flag.Parse()

	// Load environment file
	if err := godotenv.Load(*envFile); err != nil && *envFile == ".env" {
		log.Printf("Warning: %v", err)
	}

	// Load configuration
	cfg := &config.Config{}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize validators
	validation.Initialize()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	checks := map[string]handlers.HealthCheck{}

	// Initialize storage
	var repos repository.Repositories
	switch cfg.Database.Driver {
	case "memory":
		log.Println("Using in-memory storage; data is lost on exit")
		repos = memory.NewStore().Repositories()
	default:
		db, err := database.SetupDatabase(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to set up database: %v", err)
		}
		defer db.Close()
		repos = postgres.NewRepositories(db)
		checks["database"] = db.PingContext
	}

	// Initialize rate limiters
	var limiters *ratelimit.Set
	var globalLimiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		factory := ratelimit.MemoryFactory()
		if cfg.RateLimit.Backend == "redis" {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			factory = ratelimit.RedisFactory(client, redisKeyPrefix)
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}

		policies := map[string]ratelimit.Policy{
			ratelimit.ActionGlobal: {
				Requests: cfg.RateLimit.Requests,
				Window:   time.Duration(cfg.RateLimit.Window) * time.Second,
			},
		}
		for action, rule := range cfg.RateLimit.Actions {
			policies[action] = ratelimit.Policy{Requests: rule.Requests, Window: rule.Window}
		}
		limiters = ratelimit.NewSet(factory, policies)
		globalLimiter = limiters.For(ratelimit.ActionGlobal)
	}

	// Initialize services
	var checker pwned.Checker
	if cfg.Pwned.Enabled {
		checker = pwned.NewClient(pwned.Config{
			BaseURL:   cfg.Pwned.BaseURL,
			UserAgent: cfg.Pwned.UserAgent,
			Timeout:   cfg.Pwned.Timeout,
		})
	}
	authService := auth.NewService(cfg.Auth, repos.RefreshTokens)
	authenticator := auth.NewAuthenticator(
		cfg.Auth,
		repos.Users,
		repos.Accounts,
		repos.Verifications,
		repos.Resets,
		repos.TwoFactor,
		authService,
		email.NewSender(cfg.Email),
		checker,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start housekeeping
	var jobs handlers.JobRunner
	if cfg.Scheduler.Enabled {
		manager := scheduler.NewHousekeeping(cfg.Scheduler, scheduler.TokenStores{
			TwoFactor:     repos.TwoFactor,
			Verifications: repos.Verifications,
			Resets:        repos.Resets,
			RefreshTokens: repos.RefreshTokens,
		}, repos.AuditLogs, limiters)
		jobs = manager
		go func() {
			if err := manager.Start(ctx); err != nil {
				log.Printf("Failed to start scheduler: %v", err)
			}
		}()
	}

	// Setup routes
	router := routes.SetupRoutes(routes.Dependencies{
		Config:         cfg,
		Repos:          repos,
		Authenticator:  authenticator,
		OAuthProviders: auth.NewOAuthProviders(cfg.OAuth, cfg.API.BaseURL),
		GlobalLimiter:  globalLimiter,
		Limiters:       limiters,
		Jobs:           jobs,
		HealthChecks:   checks,
		Logger:         logger,
	})

	srv, err := server.New(cfg.API, router)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server exiting")
}
