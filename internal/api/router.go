package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/api/handlers"
	mw "github.com/Harshitk-cp/sentinel/internal/api/middleware"
	"github.com/Harshitk-cp/sentinel/internal/config"
	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Engine    *service.Engine
	Refresher *service.ModelRefresher
	db        *pgxpool.Pool
	metrics   *mw.MetricsCollector
	startTime time.Time
}

// Options tune the HTTP surface. Zero values fall back to config.
type Options struct {
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
}

func optionsFromConfig() Options {
	return Options{
		APIKey:         config.APIKey(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}
}

// NewApp wires the HTTP adapter around an engine. db is optional and only
// consulted by /health. Background goroutines stop when ctx is cancelled.
func NewApp(ctx context.Context, engine *service.Engine, db *pgxpool.Pool, logger *zap.Logger) *App {
	return NewAppWithOptions(ctx, engine, db, optionsFromConfig(), logger)
}

func NewAppWithOptions(ctx context.Context, engine *service.Engine, db *pgxpool.Pool, opts Options, logger *zap.Logger) *App {
	sentimentHandler := handlers.NewSentimentHandler(engine)
	learningHandler := handlers.NewLearningHandler(engine)
	modelHandler := handlers.NewModelHandler(engine.Models())

	r := chi.NewRouter()
	app := &App{
		Router:    r,
		Engine:    engine,
		Refresher: service.NewModelRefresher(engine.Models(), logger),
		db:        db,
		metrics:   mw.NewMetricsCollector(),
		startTime: time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(ctx, opts.RateLimitRPS, opts.RateLimitBurst))

	// Health and metrics (no auth)
	r.Get("/health", app.healthHandler())
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(opts.APIKey))

		r.Post("/sentiment/analyze", sentimentHandler.Analyze)
		r.Post("/sentiment/profile", sentimentHandler.Profile)
		r.Post("/escalation/risk", sentimentHandler.EscalationRisk)

		r.Route("/learning", func(r chi.Router) {
			r.Post("/resolutions", learningHandler.RecordResolution)
			r.Post("/behaviors", learningHandler.RecordBehavior)
			r.Post("/escalations", learningHandler.RecordEscalation)
		})

		r.Post("/agents/{id}/recommendations", learningHandler.Recommendations)

		r.Route("/departments/{dept}", func(r chi.Router) {
			r.Get("/insights", learningHandler.Insights)
			r.Post("/suggestions", learningHandler.Suggestions)
		})

		r.Route("/models", func(r chi.Router) {
			r.Get("/", modelHandler.List)
			r.Post("/", modelHandler.Register)
			r.Post("/refresh", modelHandler.Refresh)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", modelHandler.Deregister)
				r.Post("/predict", modelHandler.Predict)
				r.Post("/train", modelHandler.Train)
			})
		})
	})

	return app
}

// healthHandler reports "degraded" when the database is unreachable or any
// registered model is in error status. Judgments are still served then.
func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		status := http.StatusOK

		if app.db != nil {
			if err := app.db.Ping(r.Context()); err != nil {
				resp["status"] = "error"
				resp["error"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		counts := make(map[domain.ModelStatus]int)
		for _, reg := range app.Engine.Models().List() {
			counts[reg.Status]++
		}
		resp["models"] = counts
		if counts[domain.ModelError] > 0 && status == http.StatusOK {
			resp["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		snap := app.metrics.Snapshot()

		var usage int64
		for _, reg := range app.Engine.Models().List() {
			usage += reg.UsageCount
		}

		response := map[string]any{
			"uptime_seconds":  uptime.Seconds(),
			"uptime_human":    uptime.Round(time.Second).String(),
			"request_count":   snap.Requests,
			"error_count":     snap.Errors,
			"throttled_count": snap.Throttled,
			"avg_latency_ms":  snap.AvgLatencyMsec,
			"model_usage":     usage,
			"goroutines":      runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
				"sys_mb":   float64(memStats.Sys) / 1024 / 1024,
				"num_gc":   memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
