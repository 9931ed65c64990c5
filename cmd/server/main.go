package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/structcms/versioned-content/internal/scheduler"
	"github.com/structcms/versioned-content/pkg/versionedcontent/api"
	"github.com/structcms/versioned-content/pkg/versionedcontent/config"
)

// ServerEnv holds process-level settings read before the service config
// is assembled.
type ServerEnv struct {
	EnvPrefix       string        `env:"CONTENT_ENV_PREFIX" env-default:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
	EnablePruner    bool          `env:"ENABLE_PRUNER" env-default:"true"`
}

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var env ServerEnv
	if err := cleanenv.ReadEnv(&env); err != nil {
		logger.Error("failed to read server environment", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(config.WithEnv(env.EnvPrefix))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := cfg.Build(ctx, logger)
	if err != nil {
		logger.Error("failed to build service", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var pruner *scheduler.Scheduler
	if env.EnablePruner {
		pruner = scheduler.New(app.Service, app.Gateway, cfg.PruneSchedule, cfg.ArchivedRetention, cfg.ArchivedKeepMin, logger)
		if err := pruner.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer pruner.Stop()
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: routes(app, cfg, env.RequestTimeout, logger),
	}

	go func() {
		logger.Info("content server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.DefaultStorageBackend,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}

func routes(app *config.App, cfg *config.ServerConfig, requestTimeout time.Duration, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(requestTimeout))

	// CORS for development
	if cfg.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
				if req.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}
				next.ServeHTTP(w, req)
			})
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/content", api.NewContentHandler(app.Service, logger).Routes())
		r.Mount("/locations", api.NewTreeHandler(app.Service, logger).Routes())
		r.Mount("/types", api.NewTypeHandler(app.Schema, logger).Routes())
	})

	return r
}
