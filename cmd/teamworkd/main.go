package main

import (
	"context"
	"fmt"
	"log"

	"github.com/getkayan/teamwork"
	"github.com/getkayan/teamwork/api"
	"github.com/getkayan/teamwork/authz"
	"github.com/getkayan/teamwork/cache"
	"github.com/getkayan/teamwork/config"
	"github.com/getkayan/teamwork/health"
	"github.com/getkayan/teamwork/logger"
	"github.com/getkayan/teamwork/persistence"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting Teamwork Authorization Service",
		zap.Int("port", cfg.Port),
		zap.String("dsn", cfg.DSN),
	)

	repo, err := persistence.OpenRepository(cfg.DBType, cfg.DSN, nil, cfg.SkipAutoMigrate)
	if err != nil {
		logger.Log.Fatal("failed to initialize repository", zap.Error(err))
	}

	catalog := authz.NewMemoryCatalog()
	for typ, codes := range cfg.Catalog() {
		registered := make([]authz.Code, len(codes))
		for i, code := range codes {
			registered[i] = authz.Code(code)
		}
		catalog.Register(typ, registered...)
	}

	engine := teamwork.NewDefaultEngine(repo.DB(), catalog,
		authz.WithMaxDepth(cfg.MaxAncestryDepth),
		authz.WithLogger(logger.Log),
	)

	checks := health.NewManager(version)
	checks.RegisterPing("database", func(ctx context.Context) error {
		sqlDB, err := repo.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	// Layer the resolution cache on top when Redis is configured.
	var resolver authz.Resolver = engine
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		resolver = cache.New(engine, cache.NewRedisStore(client), cfg.CacheTTL)
		checks.RegisterPing("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Log.Info("resolution cache enabled",
			zap.String("redis", cfg.RedisAddr),
			zap.Duration("ttl", cfg.CacheTTL),
		)
	}

	h := api.NewHandler(resolver)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(api.RequestLogger(logger.Log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.JWTSecret != "" {
		e.Use(api.SubjectMiddleware([]byte(cfg.JWTSecret)))
	}

	// Routes
	checks.RegisterRoutes(e)
	g := e.Group("/api/v1")
	h.RegisterRoutes(g)

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}
