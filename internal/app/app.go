// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thocc/newsrelay/internal/config"
	"github.com/thocc/newsrelay/internal/news"
	newspostgres "github.com/thocc/newsrelay/internal/news/postgres"
	"github.com/thocc/newsrelay/internal/notifications"
	"github.com/thocc/newsrelay/internal/notifications/telegram"
	"github.com/thocc/newsrelay/internal/pkg/browser"
	"github.com/thocc/newsrelay/internal/pkg/ctxlog"
	"github.com/thocc/newsrelay/internal/pkg/httputil"
	"github.com/thocc/newsrelay/internal/pkg/metrics"
	"github.com/thocc/newsrelay/internal/pkg/postgres"
	"github.com/thocc/newsrelay/internal/scheduler"
	"github.com/thocc/newsrelay/internal/version"
	"github.com/thocc/newsrelay/migrations"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	dispatcher    *notifications.Dispatcher
	scheduler     *scheduler.Scheduler
	browser       *browser.Session

	stopScheduler context.CancelFunc
	schedulerDone <-chan error
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	app := &App{
		config: cfg,
		logger: logger,
		db:     db,
	}

	tg, err := telegram.NewClient(telegram.Config{
		APIURL:    cfg.Telegram.APIURL,
		BotToken:  cfg.Telegram.BotToken,
		RateLimit: cfg.Telegram.RateLimit,
		Timeout:   cfg.Telegram.Timeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	app.dispatcher = notifications.NewDispatcher(tg, cfg.Telegram.ChatID, notifications.RetryPolicy{
		MaxAttempts:          cfg.Retry.MaxAttempts,
		RetryInterval:        cfg.Retry.Interval,
		RetryableStatusFloor: cfg.Retry.StatusFloor,
		RetryableBodyMarkers: cfg.Retry.BodyMarkers,
	}, notifications.NewRetryQueue())

	newsService := news.NewService(newspostgres.NewRepository(db))

	app.scheduler = scheduler.New(logger, scheduler.Config{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	app.scheduler.AddDelivery(notifications.NewWorker(app.dispatcher, cfg.Retry.PollInterval))
	app.scheduler.Add(metrics.PoolCollector{Pool: db, Interval: 15 * time.Second})

	if err := app.setupSources(newsService); err != nil {
		db.Close()
		return nil, fmt.Errorf("setup sources: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(newsService),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	if cfg.Metrics.Enabled {
		metricsRouter := chi.NewRouter()
		metricsRouter.Handle("/metrics", promhttp.Handler())

		app.metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Metrics.Port),
			Handler:           metricsRouter,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}

	return app, nil
}

// Start launches the background loops.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopScheduler = cancel
	a.schedulerDone = a.scheduler.ServeBackground(ctx)
}

// Run starts the background loops and the HTTP servers. It blocks until the
// main server stops.
func (a *App) Run() error {
	a.Start()

	if a.metricsServer != nil {
		go func() {
			a.logger.Info("starting metrics server",
				"host", a.config.Server.Host,
				"port", a.config.Metrics.Port,
			)
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", "error", err)
			}
		}()
	}

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	var errs []error

	if a.stopScheduler != nil {
		a.stopScheduler()
		select {
		case <-a.schedulerDone:
			a.reportUnstopped()
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("stop scheduler: %w", ctx.Err()))
		}
		if pending := a.dispatcher.Queue().Len(); pending > 0 {
			a.logger.Warn("dropping queued notifications", "count", pending)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	shutdown := func(name string, srv *http.Server) {
		defer wg.Done()
		if err := srv.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
			mu.Unlock()
		}
	}

	wg.Add(1)
	go shutdown("server", a.server)
	if a.metricsServer != nil {
		wg.Add(1)
		go shutdown("metrics server", a.metricsServer)
	}
	wg.Wait()

	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Dispatcher returns the notification dispatcher.
func (a *App) Dispatcher() *notifications.Dispatcher {
	return a.dispatcher
}

func (a *App) setupRouter(newsService *news.Service) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	r.Use(httputil.CORSMiddleware(a.config.Server.CORSOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	news.NewHandler(newsService, a.dispatcher, a.stamp(a.config.Feeds.Layout)).RegisterRoutes(r)

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

// reportUnstopped logs the services that outlived the scheduler's own
// shutdown timeout. It blocks until the tree has stopped.
func (a *App) reportUnstopped() {
	unstopped, err := a.scheduler.UnstoppedServiceReport()
	if err != nil {
		a.logger.Warn("unstopped service report unavailable", "error", err)
		return
	}
	for _, svc := range unstopped {
		a.logger.Warn("service did not stop in time", "service", svc.Name)
	}
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
