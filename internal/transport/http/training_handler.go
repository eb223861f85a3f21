package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"paycast/internal/config"
	apierrors "paycast/internal/errors"
	"paycast/internal/training"
	api "paycast/pkg/contracts/api/v1"
)

// TrainingHandler serves training job submission and status
type TrainingHandler struct {
	manager      *training.Manager
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewTrainingHandler creates a training handler
func NewTrainingHandler(manager *training.Manager, logger *slog.Logger) *TrainingHandler {
	return &TrainingHandler{
		manager:      manager,
		validate:     validator.New(),
		logger:       logger,
		errorHandler: apierrors.NewErrorHandler(logger),
	}
}

// RegisterRoutes registers the training routes
func (h *TrainingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/train", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Get("/", h.List)
		r.Get("/{jobID}", h.Status)
	})
}

// Start submits a training job
func (h *TrainingHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TrainRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest, "INVALID_REQUEST", "name and dataset_path are required"))
		return
	}

	spec, err := h.resolveSpec(&req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	job, err := h.manager.Start(spec, req.DatasetPath, req.Name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "training job submitted",
		slog.String("job_id", job.ID),
		slog.String("name", req.Name))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, api.TrainResponse{JobID: job.ID, Status: string(job.Status)})
}

// resolveSpec loads the model spec from the request, either inline or from a
// file path
func (h *TrainingHandler) resolveSpec(req *api.TrainRequest) (*config.ModelSpec, error) {
	switch {
	case req.SpecPath != "" && req.Spec != nil:
		return nil, apierrors.New(http.StatusBadRequest, "INVALID_REQUEST",
			"spec and spec_path are mutually exclusive")
	case req.SpecPath != "":
		return config.LoadModelSpec(req.SpecPath)
	case req.Spec != nil:
		data, err := json.Marshal(req.Spec)
		if err != nil {
			return nil, apierrors.New(http.StatusBadRequest, "INVALID_REQUEST", "spec is not valid JSON")
		}
		var spec config.ModelSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, apierrors.New(http.StatusBadRequest, "INVALID_REQUEST", "spec does not match the model spec shape")
		}
		spec.ApplyDefaults()
		if err := spec.Validate(); err != nil {
			return nil, apierrors.NewConfigurationError("invalid model spec", err)
		}
		return &spec, nil
	default:
		return nil, apierrors.New(http.StatusBadRequest, "INVALID_REQUEST",
			"either spec or spec_path must be provided")
	}
}

// List returns all training jobs
func (h *TrainingHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.manager.List())
}

// Status returns one training job
func (h *TrainingHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.manager.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}
