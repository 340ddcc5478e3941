package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"file-hub/internal/config"
	domain "file-hub/internal/domain/file"
	"file-hub/internal/infrastructure/cache"
	"file-hub/internal/infrastructure/database"
	"file-hub/internal/infrastructure/logger"
	"file-hub/internal/infrastructure/observability"
	repo "file-hub/internal/infrastructure/repository/file"
	"file-hub/internal/infrastructure/storage"
	"file-hub/internal/interfaces/httpserver"
)

type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.GetDatabaseWriteDSN(),
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	cacheClient, err := cache.NewRedisCache(cfg.RedisURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize cache")
	}
	defer cacheClient.Close()

	blobStorage, storageCheck, err := newBlobStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize storage")
	}

	fileRepository := repo.NewRepository(db)
	fileService := domain.NewService(cfg, fileRepository, blobStorage, cacheClient, log)

	readiness := map[string]httpserver.ReadinessCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"cache":   cacheClient.HealthCheck,
		"storage": storageCheck,
	}

	httpServer := httpserver.New(cfg, log, fileService, readiness)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

// newBlobStorage creates the payload store selected by configuration,
// along with its readiness probe.
func newBlobStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (domain.BlobStorage, httpserver.ReadinessCheck, error) {
	if cfg.IsS3Storage() {
		s3Store, err := storage.NewS3Storage(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return s3Store, s3Store.Health, nil
	}
	localStore, err := storage.NewLocalStorage(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return localStore, localStore.Health, nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
