// Package server initializes and runs the filevault API process: it opens
// the configured backends, serves the REST API and the gRPC health service,
// and shuts everything down on SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/bootstrap"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/httpapi"
	"github.com/dmitrijs2005/filevault/internal/server/services"

	gs "github.com/dmitrijs2005/filevault/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	adapters *bootstrap.Adapters
	router   http.Handler
	health   *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	a, err := bootstrap.Open(ctx, c, logger, true)
	if err != nil {
		return nil, err
	}

	auth := services.NewAuthService(a.Repos.Users(), a.Sessions, cryptox.NewArgon2Hasher(cryptox.DefaultParams), a.Broker, c.SessionTTL, logger)
	files := services.NewFileService(a.Repos.Files(), a.Blobs, a.Broker, c.PageSize, logger)
	status := services.NewStatusService(a.Repos, a.Sessions)

	health := gs.NewHealthServer(c.HealthAddrGRPC, logger, status)
	status.Observe(health.Update)

	h := httpapi.NewHandler(auth, files, status, c.MaxUploadBytes, logger)

	return &App{
		config:   c,
		logger:   logger.With("module", "app"),
		adapters: a,
		router:   httpapi.NewRouter(h, logger.Slog()),
		health:   health,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.adapters.Close(); err != nil {
		app.logger.Error(ctx, "close adapters", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
