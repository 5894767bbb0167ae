package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jwtauth/jwt-auth-service/internal/core/port"
	"github.com/jwtauth/jwt-auth-service/internal/infra/config"
	"github.com/jwtauth/jwt-auth-service/internal/infra/database"
	kafkainfra "github.com/jwtauth/jwt-auth-service/internal/infra/kafka"
	"github.com/jwtauth/jwt-auth-service/internal/infra/logger"
	redisinfra "github.com/jwtauth/jwt-auth-service/internal/infra/redis"
	"github.com/jwtauth/jwt-auth-service/internal/infra/scheduler"
	"github.com/jwtauth/jwt-auth-service/internal/infra/security"
	"github.com/jwtauth/jwt-auth-service/internal/infra/telemetry"
	postgresrepo "github.com/jwtauth/jwt-auth-service/internal/repository/postgres"
	redisrepo "github.com/jwtauth/jwt-auth-service/internal/repository/redis"
	"github.com/jwtauth/jwt-auth-service/internal/transport/http/middleware"
	"github.com/jwtauth/jwt-auth-service/internal/transport/http/routes"
	"github.com/jwtauth/jwt-auth-service/internal/usecase"
)

const loginAttemptRetention = 90 * 24 * time.Hour

// Application owns the wired dependency graph and the process lifecycle.
type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	scheduler *scheduler.Scheduler
}

// New wires configuration, infrastructure, repositories, services, and the
// HTTP engine into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	codec, err := security.NewTokenCodec([]byte(cfg.JWT.Secret), cfg.JWT.Issuer)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	var (
		redisClient *redisinfra.Client
		rateLimiter *middleware.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}

		rateLimitWindow := cfg.RateLimit.WindowDuration
		if rateLimitWindow <= 0 {
			rateLimitWindow = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: "auth:rate-limit",
			TTL:       rateLimitWindow * 2,
		})
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	} else {
		log.Info("redis disabled, transport rate limiting is off")
	}

	var (
		eventPublisher port.EventPublisher
		producer       *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	metrics, err := telemetry.NewAuthMetrics(nil)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	throttle := usecase.NewLoginThrottle(cfg.Throttle.MaxAttempts, cfg.Throttle.LockoutDuration)
	validator := security.DefaultPasswordValidator()

	tokenService, err := usecase.NewTokenService(cfg, codec, repos.RefreshTokens, eventPublisher, log)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init token service: %w", err)
	}
	tokenService.WithMetrics(metrics)

	authService, err := usecase.NewAuthService(repos.Users, repos.LoginAttempts, tokenService, throttle, validator, eventPublisher, log)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	userService, err := usecase.NewUserService(repos.Users, tokenService, validator, log)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init user service: %w", err)
	}

	historyService, err := usecase.NewLoginHistoryService(repos.LoginAttempts, log)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init login history service: %w", err)
	}

	jobs := scheduler.New(log,
		scheduler.Job{
			Name:     "revoke_expired_tokens",
			Interval: cfg.Tokens.RevokeSweepEvery,
			Run: func(ctx context.Context) error {
				_, err := tokenService.SweepExpired(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "purge_revoked_tokens",
			Interval: cfg.Tokens.PurgeSweepEvery,
			Run: func(ctx context.Context) error {
				_, err := tokenService.PurgeRevoked(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "cleanup_throttle_state",
			Interval: cfg.Throttle.CleanupEvery,
			Run: func(ctx context.Context) error {
				throttle.CleanupStale(cfg.Throttle.LockoutDuration * 2)
				return nil
			},
		},
		scheduler.Job{
			Name:     "prune_login_attempts",
			Interval: 24 * time.Hour,
			Run: func(ctx context.Context) error {
				_, err := historyService.PruneOlderThan(ctx, loginAttemptRetention)
				return err
			},
		},
	)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Database:    pool,
		Services: routes.ServiceSet{
			Auth:    authService,
			Tokens:  tokenService,
			Users:   userService,
			History: historyService,
		},
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}

	engine := routes.Register(deps)

	return &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		producer:  producer,
		scheduler: jobs,
	}, nil
}

// Run starts the background jobs and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func closeAll(pool *pgxpool.Pool, redisClient *redisinfra.Client, producer *kafkainfra.Producer) {
	if pool != nil {
		pool.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if producer != nil {
		_ = producer.Close()
	}
}
