package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/holograma/internal/auth"
	"github.com/romariotrain/holograma/internal/config"
	"github.com/romariotrain/holograma/internal/media/httpapi"
	"github.com/romariotrain/holograma/internal/media/mediaset"
	"github.com/romariotrain/holograma/internal/media/repository"
	"github.com/romariotrain/holograma/internal/media/service"
	"github.com/romariotrain/holograma/internal/storage/local"
	pg "github.com/romariotrain/holograma/internal/storage/postgres"
	"github.com/romariotrain/holograma/internal/storage/s3store"
)

const (
	filesPrefix   = "/files/"
	sweepInterval = time.Minute
)

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if err := cfg.RequireAuth(); err != nil {
		return err
	}

	// Repository
	var repo repository.ArticleRepository
	if cfg.UsesPostgres() {
		if cfg.AutoMigrate {
			if err := pg.Migrate(cfg.DatabaseURL, logger); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		pool := pg.DefaultPoolConfig()
		pool.MaxOpenConns = cfg.DBMaxOpenConns
		pool.MaxIdleConns = cfg.DBMaxIdleConns
		pool.ConnMaxLifetime = cfg.DBConnLifetime

		db, err := pg.Connect(ctx, cfg.DatabaseURL, pool)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()

		repo = pg.NewArticleRepo(db, pg.NewOutboxRepo(db))
	} else {
		logger.Warn().Msg("DATABASE_URL is not set; articles are kept in memory")
		repo = repository.NewMemoryRepository()
	}

	// Media storage
	extra := map[string]http.Handler{}
	var uploader mediaset.Uploader
	switch cfg.StorageBackend {
	case "s3":
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKeyID:   cfg.S3AccessKeyID,
			SecretKey:     cfg.S3SecretKey,
			UsePathStyle:  cfg.S3UsePathStyle,
			PublicBaseURL: cfg.S3PublicBaseURL,
			KeyPrefix:     cfg.S3KeyPrefix,
		}, logger)
		if err != nil {
			return fmt.Errorf("s3 storage: %w", err)
		}
		uploader = store
	default:
		store, err := local.New(local.Config{
			Path:    cfg.LocalStoragePath,
			BaseURL: cfg.LocalStorageBaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("local storage: %w", err)
		}
		uploader = store
		extra["GET "+filesPrefix] = store.Handler(filesPrefix)
	}

	// Dependencies
	svc := service.New(repo, uploader, service.Config{
		UploadConcurrency: cfg.UploadConcurrency,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		IdleTimeout:       cfg.SessionIdleTimeout,
	}, logger)
	defer svc.Shutdown()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go svc.RunSweeper(sweepCtx, sweepInterval)

	authn := auth.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	h := httpapi.New(svc, cfg.MaxUploadBytes, logger)
	router := httpapi.NewRouter(h, authn, extra)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.StorageBackend).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	}
}
