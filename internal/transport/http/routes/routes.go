package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/infra/config"
	"github.com/jwtauth/jwt-auth-service/internal/transport/http/handlers"
	"github.com/jwtauth/jwt-auth-service/internal/transport/http/middleware"
	"github.com/jwtauth/jwt-auth-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth    *usecase.AuthService
	Tokens  *usecase.TokenService
	Users   *usecase.UserService
	History *usecase.LoginHistoryService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	if deps.Config != nil && len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	}

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Services.Auth == nil {
		return r
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Auth)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		authHandler.RegisterRoutes(authGroup,
			buildRateLimitMiddlewares(deps, "auth_login_ip", loginLimit),
			buildRateLimitMiddlewares(deps, "auth_refresh_ip", refreshLimit),
		)

		if deps.Services.Users != nil {
			userHandler := handlers.NewUserHandler(deps.Services.Users, deps.Services.Tokens, deps.Services.History)

			usersGroup := api.Group("/users")
			userHandler.RegisterPublicRoutes(usersGroup, buildRateLimitMiddlewares(deps, "register_ip", registerLimit)...)

			protected := usersGroup.Group("")
			protected.Use(authMiddleware)
			userHandler.RegisterProtectedRoutes(protected)

			adminGroup := api.Group("/admin")
			adminGroup.Use(authMiddleware, middleware.RequireRole(domain.RoleAdmin.Authority()))
			adminHandler := handlers.NewAdminHandler(deps.Services.Users)
			adminHandler.RegisterRoutes(adminGroup)
		}
	}

	return r
}

func loginLimit(cfg *config.AppConfig) int {
	return cfg.RateLimit.LoginMaxAttempts
}

func refreshLimit(cfg *config.AppConfig) int {
	return cfg.RateLimit.RefreshMaxAttempts
}

func registerLimit(cfg *config.AppConfig) int {
	return cfg.RateLimit.RegisterMaxAttempts
}

func buildRateLimitMiddlewares(deps Dependencies, name string, limitOf func(*config.AppConfig) int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := limitOf(deps.Config)
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
