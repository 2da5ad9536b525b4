package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focus-session-service/internal/analysis"
	"focus-session-service/internal/app"
	"focus-session-service/internal/config"
	"focus-session-service/internal/infra/memory"
	"focus-session-service/internal/infra/postgres"
	infraredis "focus-session-service/internal/infra/redis"
	"focus-session-service/internal/logging"
	transport "focus-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the classroom server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type sessionStore interface {
	app.Recorder
	app.SessionReader
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 2*time.Hour)

	var store sessionStore = memory.NewRecorder()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewRecorder(pool)
	}

	deps := app.Deps{
		Recorder: store,
		Logger:   logger,
	}
	var registry app.SessionRegistry
	var reports app.ReportRepository
	reportTTL := config.Duration(cfg.Report.TTL, 30*time.Second)
	builder := app.NewReportBuilder(store)
	if redisClient != nil {
		deps.Gate = infraredis.NewQuestionGate(redisClient, redisTTL)
		deps.Focus = infraredis.NewFocusStore(redisClient, redisTTL)
		registry = infraredis.NewSessionStore(redisClient, redisTTL)
		reports = infraredis.NewReportRepository(redisClient, builder, reportTTL)
	} else {
		deps.Gate = memory.NewQuestionGate()
		deps.Focus = memory.NewFocusStore()
		registry = memory.NewSessionStore()
		reports = memory.NewReportRepository(builder, reportTTL)
	}

	defaults := app.DefaultSettings()
	settings := app.Settings{
		DefaultTimer:         config.Duration(cfg.Quiz.DefaultTimer, defaults.DefaultTimer),
		SubmitGrace:          config.Duration(cfg.Quiz.SubmitGrace, defaults.SubmitGrace),
		DiscussionDelay:      config.Duration(cfg.Quiz.DiscussionDelay, defaults.DiscussionDelay),
		DistractionThreshold: cfg.DistractionThreshold(),
		LeaderboardSize:      defaults.LeaderboardSize,
	}

	teacherID := cfg.Session.TeacherID
	if teacherID == "" {
		teacherID = "default_teacher"
	}
	hub := app.NewHub(registry, deps, settings, teacherID)
	if _, err := hub.Start(ctx); err != nil {
		return err
	}

	analyzer := analysis.NewClient(cfg.Analysis.URL, cfg.Analysis.APIKey, config.Duration(cfg.Analysis.Timeout, 20*time.Second))
	if cfg.Analysis.URL == "" {
		logger.Info("analysis service not configured, ai reports will use the fallback")
	}
	reportService := app.NewReportService(reports, analyzer, logger)

	router := transport.NewRouter(
		transport.NewAPI(hub, reportService, logger),
		transport.NewWSHandler(hub, logger),
		cfg.Server.CORSOrigins,
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting classroom server", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Closing the classroom ends every socket before the listener drains.
	hub.Shutdown(shutdownCtx)
	return server.Shutdown(shutdownCtx)
}
