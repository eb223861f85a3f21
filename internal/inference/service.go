package inference

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"paycast/internal/config"
	apperrors "paycast/internal/errors"
	"paycast/internal/forecast"
	"paycast/internal/infrastructure"
	"paycast/internal/registry"
)

// Prediction is the response for one input record
type Prediction struct {
	Predictions map[string]map[string]float64 `json:"predictions"`
	Metadata    Metadata                      `json:"metadata"`
}

// Metadata accompanies every prediction
type Metadata struct {
	Targets   []string  `json:"targets"`
	Quantiles []float64 `json:"quantiles"`
	// ProximityZone is the resolved cost zone of the first location feature,
	// when the model has one.
	ProximityZone *int `json:"proximity_zone,omitempty"`
}

// Service serves predictions from registry bundles. Loaded models are
// cached; bundles are immutable on disk so cached entries never go stale.
type Service struct {
	registry *registry.Registry
	cfg      config.InferenceConfig
	logger   *slog.Logger
	metrics  *infrastructure.Metrics

	mu    sync.RWMutex
	cache map[string]*cachedModel
}

type cachedModel struct {
	forecaster *forecast.Forecaster
	manifest   *registry.Manifest
}

// NewService creates an inference service. metrics may be nil in tests.
func NewService(reg *registry.Registry, cfg config.InferenceConfig, logger *slog.Logger, metrics *infrastructure.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: reg,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		cache:    map[string]*cachedModel{},
	}
}

// Model returns the forecaster for a bundle id, loading and caching it on
// first use
func (s *Service) Model(id string) (*forecast.Forecaster, *registry.Manifest, error) {
	s.mu.RLock()
	entry, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return entry.forecaster, entry.manifest, nil
	}

	f, manifest, err := s.registry.Load(id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.cache[id] = &cachedModel{forecaster: f, manifest: manifest}
	s.mu.Unlock()

	s.logger.Info("model loaded into cache", "id", id, "models", len(f.Bank()))
	return f, manifest, nil
}

// Evict drops a bundle from the cache, e.g. after deletion
func (s *Service) Evict(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

// Schema returns the input schema of a stored model
func (s *Service) Schema(id string) (*forecast.Schema, error) {
	f, _, err := s.Model(id)
	if err != nil {
		return nil, err
	}
	return f.InputSchema(), nil
}

// Predict validates and predicts one record against a stored model.
// Validation failures carry every collected message; unexpected internal
// failures are wrapped so callers never see a raw error from the model core.
func (s *Service) Predict(ctx context.Context, modelID string, features map[string]any) (*Prediction, error) {
	f, _, err := s.Model(modelID)
	if err != nil {
		return nil, err
	}
	return s.predictLoaded(ctx, f, features)
}

func (s *Service) predictLoaded(ctx context.Context, f *forecast.Forecaster, features map[string]any) (pred *Prediction, err error) {
	start := time.Now()
	defer func() {
		s.observePrediction(ctx, start, err)
	}()

	if msgs := ValidateInput(f, features); len(msgs) > 0 {
		return nil, apperrors.NewInvalidInputError(msgs)
	}

	values, err := f.Predict(features)
	if err != nil {
		return nil, apperrors.NewPredictionError(err)
	}

	pred = &Prediction{
		Predictions: values,
		Metadata: Metadata{
			Targets:   f.Spec().Model.Targets,
			Quantiles: f.Spec().Model.Quantiles,
		},
	}

	if locations := f.InputSchema().ProximityFeatures; len(locations) > 0 {
		zone := f.ProximityZone(features[locations[0]])
		pred.Metadata.ProximityZone = &zone
	}
	return pred, nil
}

func (s *Service) observePrediction(ctx context.Context, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	switch {
	case apperrors.IsType(err, apperrors.ErrTypeValidation):
		status = "validation_error"
	case err != nil:
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	s.metrics.PredictionsTotal.Add(ctx, 1, attrs)
	s.metrics.PredictionDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
