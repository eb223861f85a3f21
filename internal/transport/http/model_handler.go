package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "paycast/internal/errors"
	"paycast/internal/inference"
	"paycast/internal/registry"
	api "paycast/pkg/contracts/api/v1"
)

// ModelHandler serves model listing, schemas and predictions
type ModelHandler struct {
	service      *inference.Service
	registry     *registry.Registry
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewModelHandler creates a model handler
func NewModelHandler(service *inference.Service, reg *registry.Registry, logger *slog.Logger) *ModelHandler {
	return &ModelHandler{
		service:      service,
		registry:     reg,
		validate:     validator.New(),
		logger:       logger,
		errorHandler: apierrors.NewErrorHandler(logger),
	}
}

// RegisterRoutes registers the model routes
func (h *ModelHandler) RegisterRoutes(r chi.Router) {
	r.Route("/models", func(r chi.Router) {
		r.Get("/", h.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/schema", h.Schema)
			r.Post("/predict", h.Predict)
			r.Post("/predict/batch", h.PredictBatch)
			r.Delete("/", h.Delete)
		})
	})
}

// List returns the stored model bundles
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	manifests, err := h.registry.List()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	out := make([]api.ModelSummary, len(manifests))
	for i, m := range manifests {
		out[i] = api.ModelSummary{
			ID:        m.ID,
			Name:      m.Name,
			CreatedAt: m.CreatedAt,
			Targets:   m.Targets,
			Quantiles: m.Quantiles,
		}
	}
	render.JSON(w, r, out)
}

// Schema returns the input schema of a stored model
func (h *ModelHandler) Schema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	schema, err := h.service.Schema(id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, schema)
}

// Predict serves a single prediction
func (h *ModelHandler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req api.PredictRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest, "INVALID_REQUEST", "features is required"))
		return
	}

	pred, err := h.service.Predict(ctx, id, req.Features)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, toPredictResponse(id, pred))
}

// PredictBatch serves a bounded-concurrency batch prediction
func (h *ModelHandler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req api.BatchPredictRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest, "INVALID_REQUEST", "items must contain at least one entry"))
		return
	}

	timeout := time.Duration(req.TimeoutSeconds * float64(time.Second))
	items, err := h.service.PredictBatch(ctx, id, req.Items, req.Concurrency, timeout)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := api.BatchPredictResponse{
		ModelID: id,
		Items:   make([]api.BatchItemResponse, len(items)),
	}
	for i, item := range items {
		resp.Items[i] = toBatchItemResponse(id, item)
	}
	render.JSON(w, r, resp)
}

// Delete removes a stored model bundle
func (h *ModelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.registry.Delete(id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.service.Evict(id)
	h.logger.InfoContext(r.Context(), "model deleted", slog.String("id", id))

	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}

func toPredictResponse(modelID string, pred *inference.Prediction) api.PredictResponse {
	return api.PredictResponse{
		ModelID:     modelID,
		Predictions: pred.Predictions,
		Metadata: api.PredictionMetadata{
			Targets:       pred.Metadata.Targets,
			Quantiles:     pred.Metadata.Quantiles,
			ProximityZone: pred.Metadata.ProximityZone,
		},
	}
}

func toBatchItemResponse(modelID string, item inference.BatchItem) api.BatchItemResponse {
	out := api.BatchItemResponse{Index: item.Index}
	if item.Err == nil {
		out.Status = "success"
		result := toPredictResponse(modelID, item.Result)
		out.Result = &result
		return out
	}

	itemErr := &api.BatchItemError{Message: item.Err.Error()}
	switch {
	case apierrors.IsType(item.Err, apierrors.ErrTypeValidation):
		out.Status = "validation_error"
		itemErr.Code = "INVALID_INPUT"
		var appErr *apierrors.AppError
		if errors.As(item.Err, &appErr) {
			itemErr.Messages = appErr.Details
			itemErr.Message = appErr.Message
		}
	case apierrors.IsType(item.Err, apierrors.ErrTypeTimeout):
		out.Status = "timeout"
		itemErr.Code = "TIMEOUT"
	default:
		out.Status = "error"
		itemErr.Code = "PREDICTION_ERROR"
	}
	out.Error = itemErr
	return out
}
