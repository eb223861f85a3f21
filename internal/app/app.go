package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"paycast/internal/config"
	"paycast/internal/inference"
	"paycast/internal/infrastructure"
	"paycast/internal/registry"
	"paycast/internal/training"
	transport "paycast/internal/transport/http"
	ws "paycast/internal/websocket"
)

const Version = "1.0.0"

// Application is the assembled service
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *infrastructure.Metrics
	Registry *registry.Registry
	Server   *http.Server
	Hub      *ws.Hub
}

// NewApplication loads configuration and wires every component together
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	metrics, err := infrastructure.InitializeMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	reg, err := registry.New(cfg.Registry.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open model registry: %w", err)
	}

	hub := ws.NewHub(logger)

	service := inference.NewService(reg, cfg.Inference, logger, metrics)
	manager := training.NewManager(reg, logger, metrics, cfg.Server.TrainingTimeout)
	manager.SetBroadcaster(hub.BroadcastTrainingProgress)

	router := transport.NewRouter(transport.RouterConfig{
		Inference: service,
		Registry:  reg,
		Training:  manager,
		Hub:       hub,
		Metrics:   metrics,
		Logger:    logger,
		Version:   Version,
	})

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return &Application{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Registry: reg,
		Server:   server,
		Hub:      hub,
	}, nil
}

// Run starts the hub and the HTTP server and blocks until an interrupt
// signal arrives or the server fails
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Hub.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop shuts the application down gracefully
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Hub.Stop()

	if a.Metrics != nil {
		if err := a.Metrics.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// waitUntilReady polls the health endpoint until it responds or retries run
// out. Used by tests that start the server in-process.
func waitUntilReady(url string, retries int) bool {
	for i := 0; i < retries; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
