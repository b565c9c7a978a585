package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/task-manager-be/internal/api"
	"github.com/isdelr/task-manager-be/internal/auth"
	"github.com/isdelr/task-manager-be/internal/avatar"
	"github.com/isdelr/task-manager-be/internal/config"
	"github.com/isdelr/task-manager-be/internal/database"
	"github.com/isdelr/task-manager-be/internal/logger"
	"github.com/isdelr/task-manager-be/internal/metrics"
	"github.com/isdelr/task-manager-be/internal/monitoring"
	"github.com/isdelr/task-manager-be/internal/services"
	"github.com/isdelr/task-manager-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var cfg config.Config
	app := &cli.App{
		Name:  "task-manager",
		Usage: "Multi-user task tracking API",
		Flags: config.Flags(&cfg),
		Action: func(c *cli.Context) error {
			return run(c.Context, &cfg)
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Str("path", cfg.DatabasePath).Msg("Database ready")

	avatars, err := newAvatarStore(ctx, cfg, db)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	userService := services.NewUserService(db, auth.NewBcryptHasher(cfg.BcryptCost), tokens, avatars, cfg.MaxSessions)

	hub := websocket.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	taskService := services.NewTaskService(db, hub)

	if cfg.TokenTTL > 0 {
		sweeper := monitoring.NewSessionSweeper(userService, collector, cfg.TokenTTL, cfg.SessionSweepSchedule)
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("start session sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	router := api.NewRouter(api.Dependencies{
		DB:             db,
		Users:          userService,
		Tasks:          taskService,
		Authenticator:  auth.NewAuthenticator(tokens, userService),
		Hub:            hub,
		Metrics:        collector,
		Gatherer:       reg,
		AllowedOrigins: cfg.CORSAllowedOrigins.Value(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

func newAvatarStore(ctx context.Context, cfg *config.Config, db *sql.DB) (avatar.Store, error) {
	if cfg.S3Bucket == "" {
		return avatar.NewSQLStore(db), nil
	}
	client, err := avatar.NewS3Client(ctx, avatar.S3Options{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("configure s3 client: %w", err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("Storing avatars in S3")
	return avatar.NewS3Store(client, cfg.S3Bucket), nil
}
