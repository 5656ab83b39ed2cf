package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"symposium/api/internal/app"
	"symposium/api/internal/archive"
	"symposium/api/internal/completion"
	"symposium/api/internal/gitrepo"
	"symposium/api/internal/search"
	"symposium/api/internal/session"
	"symposium/api/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(load func() (appEnv, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply pending migrations and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()
			return runServe(cmd.Context(), rt)
		},
	}
}

func runServe(parent context.Context, rt appEnv) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger := rt.cfg, rt.logger

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db.DB, cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("applied migrations", zap.Strings("versions", applied))
	}

	if err := os.MkdirAll(cfg.CardHistoryDir, 0o755); err != nil {
		return fmt.Errorf("create card history dir: %w", err)
	}

	deps := app.Dependencies{
		Store: store.NewPostgresStore(db),
		Completion: completion.New(completion.Config{
			BaseURL: cfg.OpenRouterBaseURL,
			Referer: cfg.OpenRouterReferer,
			Title:   "Symposium",
			Timeout: cfg.CompletionTimeout,
		}, logger),
		History: gitrepo.New(cfg.CardHistoryDir),
		Logger:  logger,
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		sessions, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer sessions.Close()
		deps.Sessions = sessions
		logger.Info("refresh sessions stored in redis")
	} else {
		logger.Info("refresh sessions stored in postgres")
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey, logger)
		defer meili.Close()
	}
	deps.Search = search.NewService(meili, search.NewPgFTS(db), logger)
	defer deps.Search.Wait()

	exports, err := archive.New(ctx, archive.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
	switch {
	case errors.Is(err, archive.ErrNotConfigured):
		logger.Info("export archive disabled")
	case err != nil:
		return fmt.Errorf("export archive: %w", err)
	default:
		deps.Archive = exports
	}

	service := app.New(cfg, deps)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// a turn waits on the completion call
		WriteTimeout: cfg.CompletionTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Search.ReindexAllFromPG(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("Symposium API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
