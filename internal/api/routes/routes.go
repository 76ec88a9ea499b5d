// Package routes handles the setup and configuration of API routes
package routes

import (
	_ "inkwell/docs" // Import swagger docs
	"inkwell/internal/api/handlers"
	"inkwell/internal/api/middleware"
	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies are the services the router hands to its handlers
type Dependencies struct {
	Config         *config.Config
	Repos          repository.Repositories
	Authenticator  *auth.Authenticator
	OAuthProviders map[string]auth.OAuthProvider
	// GlobalLimiter applies the per-IP budget to every route. Nil disables it.
	GlobalLimiter ratelimit.Limiter
	// Limiters holds the per-action budgets
	Limiters     *ratelimit.Set
	Jobs         handlers.JobRunner
	HealthChecks map[string]handlers.HealthCheck
	Logger       *slog.Logger
}

// SetupRoutes configures all API routes and their handlers
func SetupRoutes(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	repos := deps.Repos

	r := gin.New()
	r.Use(gin.Recovery())
	if deps.Logger != nil {
		r.Use(middleware.Logger(deps.Logger))
	}

	// Apply compression middleware globally
	r.Use(middleware.Compression(middleware.DefaultCompressionConfig()))

	// Routes without rate limiting
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	r.GET("/health", healthHandler.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Apply rate limiting to all other routes
	if deps.GlobalLimiter != nil {
		r.Use(middleware.NewRateLimiter(deps.GlobalLimiter, cfg.RateLimit.Requests).Middleware())
	}

	limits := handlers.NewActionLimits(deps.Limiters)
	authMiddleware := middleware.NewAuthMiddleware(deps.Authenticator.Service(), repos.Users)

	authHandler := handlers.NewAuthHandler(deps.Authenticator, repos.Users, repos.AuditLogs, limits)
	oauthHandler := handlers.NewOAuthHandler(deps.OAuthProviders, deps.Authenticator, repos.AuditLogs, cfg.OAuth.RedirectURL, secureCookies(cfg))
	userHandler := handlers.NewUserHandler(deps.Authenticator, repos.Users, repos.AuditLogs)
	postHandler := handlers.NewPostHandler(repos.Posts, repos.AuditLogs)
	commentHandler := handlers.NewCommentHandler(repos.Posts, repos.Comments, repos.AuditLogs, limits)
	adminHandler := handlers.NewAdminHandler(repos.Users, repos.Posts, repos.Comments, repos.AuditLogs, deps.Jobs)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/two-factor/resend", authHandler.ResendTwoFactor)
			auth.POST("/register", authHandler.Register)
			auth.GET("/verify-email", authHandler.VerifyEmail)
			auth.POST("/resend-verification", authHandler.ResendVerification)
			auth.POST("/reset-password", authHandler.RequestPasswordReset)
			auth.POST("/reset-password/complete", authHandler.CompletePasswordReset)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/oauth/:provider", oauthHandler.Begin)
			auth.GET("/oauth/:provider/callback", oauthHandler.Callback)
		}

		// Own account routes (requires authentication)
		me := v1.Group("/users/me")
		me.Use(authMiddleware.AuthRequired())
		{
			me.GET("", userHandler.GetMe)
			me.PUT("/settings", userHandler.UpdateSettings)
			me.DELETE("", userHandler.DeleteMe)
			me.GET("/posts", postHandler.ListMyPosts)
		}

		// Post routes; drafts are visible to their author when a token is sent
		posts := v1.Group("/posts")
		{
			public := posts.Group("")
			public.Use(authMiddleware.OptionalAuth())
			{
				public.GET("", postHandler.ListPosts)
				public.GET("/:id", postHandler.GetPost)
				public.GET("/:id/comments", commentHandler.ListComments)
			}

			authored := posts.Group("")
			authored.Use(authMiddleware.AuthRequired())
			{
				authored.POST("", postHandler.CreatePost)
				authored.PUT("/:id", postHandler.UpdatePost)
				authored.DELETE("/:id", postHandler.DeletePost)
				authored.POST("/:id/submit", postHandler.SubmitPost)
				authored.POST("/:id/comments", commentHandler.CreateComment)
			}
		}

		v1.DELETE("/comments/:id", authMiddleware.AuthRequired(), commentHandler.DeleteComment)

		// Admin-only routes
		admin := v1.Group("/admin")
		admin.Use(authMiddleware.AuthRequired(), authMiddleware.AdminRequired())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/users", adminHandler.ListUsers)
			admin.PUT("/users/:id/role", adminHandler.UpdateRole)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.GET("/posts", postHandler.ListForReview)
			admin.POST("/posts/:id/approve", postHandler.ApprovePost)
			admin.POST("/posts/:id/reject", postHandler.RejectPost)
			admin.GET("/jobs", adminHandler.ListJobs)
			admin.POST("/jobs/:name/run", authMiddleware.RoleRequired(models.RoleSuperAdmin), adminHandler.RunJob)
		}
	}

	return r
}

func secureCookies(cfg *config.Config) bool {
	return strings.HasPrefix(cfg.API.BaseURL, "https://")
}
