package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shaibs3/canvascache/internal/auth"
	"github.com/shaibs3/canvascache/internal/canvas"
	"github.com/shaibs3/canvascache/internal/config"
	"github.com/shaibs3/canvascache/internal/handlers"
	"github.com/shaibs3/canvascache/internal/router"
	"github.com/shaibs3/canvascache/internal/store"
	"github.com/shaibs3/canvascache/internal/syncer"
	"github.com/shaibs3/canvascache/internal/telemetry"
)

// App represents the main application
type App struct {
	config    *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	store     store.SnapshotStore
	server    *http.Server
}

func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	tel, err := telemetry.NewTelemetry(logger)
	if err != nil {
		return nil, err
	}

	configJSON := cfg.DBConfig
	if configJSON == "" {
		configJSON = store.DefaultConfigJSON()
	}
	st, err := store.NewStoreFactory(logger).CreateProvider(configJSON)
	if err != nil {
		return nil, err
	}

	engine, err := syncer.NewEngine(st, canvas.NewClientFactory(cfg.UpstreamTimeout), logger, tel.Meter,
		syncer.WithConcurrency(cfg.WalkConcurrency))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	handlerList := []router.Handler{
		handlers.NewModuleHandler(engine, verifier, logger),
		handlers.NewHealthHandler(),
	}

	appRouter := router.NewRouter(tel, logger, handlerList)
	server := appRouter.CreateServer(":"+cfg.Port, cfg.WriteTimeout)

	return &App{
		config:    cfg,
		logger:    logger,
		telemetry: tel,
		store:     st,
		server:    server,
	}, nil
}

// Start starts the application server
func (app *App) start() error {
	app.logger.Info("starting server", zap.String("port", app.config.Port))

	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	return nil
}

// Stop drains in-flight requests, then closes the store and the meter provider
func (app *App) stop() error {
	app.logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server forced to shutdown", zap.Error(err))
		errs = append(errs, err)
	}
	if err := app.store.Close(); err != nil {
		app.logger.Error("failed to close snapshot store", zap.Error(err))
		errs = append(errs, err)
	}
	if err := app.telemetry.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	app.logger.Info("server exited gracefully")
	return nil
}

// Run starts the application and waits for shutdown signals
func (app *App) Run() error {
	if err := app.start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	return app.stop()
}
