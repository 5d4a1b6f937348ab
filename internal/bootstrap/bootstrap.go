package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizierra/internal/adapter"
	"quizierra/internal/cache"
	"quizierra/internal/config"
	"quizierra/internal/database"
	"quizierra/internal/domain"
	"quizierra/internal/handler"
	"quizierra/internal/logger"
	"quizierra/internal/middleware"
	"quizierra/internal/repository"
	"quizierra/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the wired engine and the resources it owns.
type App struct {
	Config  *config.Config
	DB      *sqlx.DB
	Redis   *redis.Client
	Cache   domain.Cache
	Service service.AdaptiveService
}

// New opens the datastore, applies migrations, connects the optional cache and builds the engine.
// The logger must already be initialized.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Get()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{Config: cfg, DB: db}

	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			// The skill cache is an accelerator; run without it rather than refuse to start.
			log.Warn("Redis unavailable, continuing without skill cache", zap.Error(err))
		} else {
			app.Redis = client
			app.Cache = adapter.NewRedisCacheAdapter(client)
			log.Info("RedisCacheAdapter initialized")
		}
	}

	svc, err := service.NewAdaptiveService(
		repository.NewAdaptiveRepository(db),
		repository.NewTransactionManagerAdapter(db),
		app.Cache,
		cfg,
	)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Service = svc
	log.Info("AdaptiveService initialized")

	return app, nil
}

// NewHTTPServer builds the fiber app serving the adaptive API.
func (a *App) NewHTTPServer() *fiber.App {
	server := fiber.New(fiber.Config{
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	server.Use(middleware.RequestLogger())
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
		MaxAge:       300,
	}))
	server.Use(recover.New())

	handler.RegisterRoutes(server,
		handler.NewAdaptiveHandler(a.Service),
		handler.NewHealthHandler(a.DB, a.Cache),
	)
	return server
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
