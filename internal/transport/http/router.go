package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	apierrors "paycast/internal/errors"
	"paycast/internal/inference"
	"paycast/internal/infrastructure"
	"paycast/internal/middleware"
	"paycast/internal/registry"
	"paycast/internal/training"
	ws "paycast/internal/websocket"
)

// RouterConfig bundles the dependencies of the HTTP surface
type RouterConfig struct {
	Inference *inference.Service
	Registry  *registry.Registry
	Training  *training.Manager
	Hub       *ws.Hub
	Metrics   *infrastructure.Metrics
	Logger    *slog.Logger
	Version   string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter builds the chi router with the full middleware chain and all
// API routes
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	errorHandler := apierrors.NewErrorHandler(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Compress(5))
	r.Use(chimiddleware.StripSlashes)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Get("/healthz", NewHealthHandler(cfg.Version).Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler)
	}

	r.Route("/api", func(r chi.Router) {
		NewModelHandler(cfg.Inference, cfg.Registry, logger).RegisterRoutes(r)
		NewTrainingHandler(cfg.Training, logger).RegisterRoutes(r)
	})

	if cfg.Hub != nil {
		r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
			conn, err := upgrader.Upgrade(w, req, nil)
			if err != nil {
				logger.ErrorContext(req.Context(), "websocket upgrade failed",
					slog.String("error", err.Error()))
				return
			}
			ws.ServeWS(cfg.Hub, conn)
		})
	}

	return r
}
