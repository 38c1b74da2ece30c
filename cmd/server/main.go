package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/api"
	"github.com/Harshitk-cp/sentinel/internal/backend"
	"github.com/Harshitk-cp/sentinel/internal/buildconfig"
	"github.com/Harshitk-cp/sentinel/internal/config"
	"github.com/Harshitk-cp/sentinel/internal/kafka"
	"github.com/Harshitk-cp/sentinel/internal/service"
	"github.com/Harshitk-cp/sentinel/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := backend.NewMCPPool(logger)
	defer func() { _ = pool.Close() }()

	models := service.NewModelManager(pool, logger)
	models.DefaultTimeout = config.ModelTimeout()

	modelFile, err := config.LoadModelFile(config.ModelsFile())
	if err != nil {
		logger.Fatal("failed to load model file", zap.String("path", config.ModelsFile()), zap.Error(err))
	}
	for _, srv := range modelFile.MCPServers {
		if err := models.ConnectMCPServer(ctx, srv.Name, srv.Endpoint, srv.APIKey()); err != nil {
			logger.Warn("MCP server unavailable", zap.String("server", srv.Name), zap.Error(err))
		}
	}
	for _, def := range modelFile.Models {
		cfg := def.Config()
		if cfg.Provider == backend.ProviderOpenAI && cfg.APIKey == "" {
			cfg.APIKey = config.OpenAIAPIKey()
		}
		res := models.Register(ctx, def.ID, def.Kind, cfg)
		if !res.Success {
			logger.Warn("model not ready at startup",
				zap.String("model_id", def.ID),
				zap.String("status", string(res.Status)),
				zap.String("error", res.Error),
			)
		}
	}

	engine := service.NewEngine(models, logger)
	engine.Learning().Config.SuccessCSAT = config.SuccessCSAT()

	var db *pgxpool.Pool
	if dbURL := config.DatabaseURL(); dbURL != "" {
		db = connectStore(ctx, dbURL, engine, logger)
		defer db.Close()
	}

	if brokers := config.KafkaBrokers(); len(brokers) > 0 {
		publisher := kafka.NewRecordPublisher(brokers, config.KafkaTopic(), logger)
		defer func() { _ = publisher.Close() }()
		engine.Learning().AddRecordSink(publisher)
		logger.Info("publishing learning records", zap.Strings("brokers", brokers), zap.String("topic", config.KafkaTopic()))
	}

	app := api.NewApp(ctx, engine, db, logger)

	// Start background services
	app.Refresher.SetInterval(config.ModelRefreshInterval())
	app.Refresher.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.Version()),
			zap.Int("models", len(models.List())),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	app.Refresher.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// connectStore attaches the Postgres record sink. The engine keeps running
// without it when the database is unreachable.
func connectStore(ctx context.Context, dbURL string, engine *service.Engine, logger *zap.Logger) *pgxpool.Pool {
	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.Ping(ctx); err != nil {
		logger.Warn("database unreachable, records will not be persisted", zap.Error(err))
		return db
	}

	trainingStore := store.NewTrainingStore(db)
	if err := trainingStore.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	engine.Learning().AddRecordSink(trainingStore)
	logger.Info("connected to database")
	return db
}
