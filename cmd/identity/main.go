package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/adapter/cache"
	"github.com/smallbiznis/valora-identity/internal/bootstrap"
	"github.com/smallbiznis/valora-identity/internal/config"
	httptransport "github.com/smallbiznis/valora-identity/internal/http"
	"github.com/smallbiznis/valora-identity/internal/http/handler"
	"github.com/smallbiznis/valora-identity/internal/http/middleware"
	"github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/repository"
	"github.com/smallbiznis/valora-identity/internal/server"
	"github.com/smallbiznis/valora-identity/internal/service"
	"github.com/smallbiznis/valora-identity/internal/telemetry"
	"github.com/smallbiznis/valora-identity/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newOrganisationRepository,
			newMembershipRepository,
			newRedisClient,
			newMembershipCache,
			newHasher,
			newTokenCodec,
			service.NewIdentityService,
			handler.NewAuthHandler,
			handler.NewUserHandler,
			handler.NewOrganisationHandler,
			newAuthMiddleware,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newOrganisationRepository(pool *pgxpool.Pool) repository.OrganisationRepository {
	return repository.NewPostgresOrganisationRepo(pool)
}

func newMembershipRepository(pool *pgxpool.Pool) repository.MembershipRepository {
	return repository.NewPostgresMembershipRepo(pool)
}

// newRedisClient returns nil when REDIS_ADDR is unset; the membership cache
// is an accelerator, not a requirement.
func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newMembershipCache(client redis.UniversalClient, cfg config.Config) service.MembershipCache {
	if client == nil {
		return nil
	}
	return cache.NewMembershipCache(client, cfg.MembershipCacheTTL)
}

func newHasher(cfg config.Config) *password.Hasher {
	return password.NewHasher(password.Params{
		Time:    uint32(cfg.PasswordHashTime),
		Memory:  uint32(cfg.PasswordHashMemoryKB),
		Threads: uint8(cfg.PasswordHashThreads),
	})
}

func newTokenCodec(cfg config.Config) *token.Codec {
	return token.NewCodec([]byte(cfg.JWTSecret), cfg.AccessTokenTTL)
}

func newAuthMiddleware(codec *token.Codec) *middleware.Auth {
	return &middleware.Auth{Codec: codec}
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
