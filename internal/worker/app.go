package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/bootstrap"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/queue"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// recoverer is implemented by brokers that can requeue jobs a crashed
// consumer left behind.
type recoverer interface {
	Recover(ctx context.Context, queue string) (int, error)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	adapters *bootstrap.Adapters
	handlers map[string]queue.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	a, err := bootstrap.OpenWorker(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		config:   c,
		logger:   logger.With("module", "worker"),
		adapters: a,
		handlers: Handlers(a, logger),
	}, nil
}

// Handlers maps each queue to the handler that consumes it.
func Handlers(a *bootstrap.Adapters, l logging.Logger) map[string]queue.Handler {
	return map[string]queue.Handler{
		queue.FileQueue: NewThumbnailer(a.Repos.Files(), a.Blobs, l).Handle,
		queue.UserQueue: NewWelcomer(a.Repos.Users(), l).Handle,
	}
}

// RunConsumers starts n consumers per queue and blocks until ctx is
// cancelled or a consumer fails.
func RunConsumers(ctx context.Context, b queue.Broker, handlers map[string]queue.Handler, n int, l logging.Logger) error {
	if r, ok := b.(recoverer); ok {
		for q := range handlers {
			moved, err := r.Recover(ctx, q)
			if err != nil {
				return fmt.Errorf("recover %s: %w", q, err)
			}
			if moved > 0 {
				l.Warn(ctx, "requeued abandoned jobs", "queue", q, "count", moved)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for q, h := range handlers {
		q, h := q, h
		for i := 0; i < n; i++ {
			g.Go(func() error {
				if err := b.Consume(gctx, q, h); err != nil {
					return fmt.Errorf("consume %s: %w", q, err)
				}
				return nil
			})
		}
		l.Info(ctx, "consuming", "queue", q, "consumers", n)
	}
	return g.Wait()
}

func (app *App) startMetricsServer(ctx context.Context) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting worker...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.startMetricsServer(gctx) })
	g.Go(func() error {
		return RunConsumers(gctx, app.adapters.Broker, app.handlers, app.config.WorkerConcurrency, app.logger)
	})

	err := g.Wait()

	if cerr := app.adapters.Close(); cerr != nil {
		app.logger.Error(ctx, "close adapters", "error", cerr)
	}
	app.logger.Info(ctx, "Worker stopped")
	return err
}
