// Package api contains the API contract definitions for the forecasting
// service. Version v1 is the current stable API version.
package api

// PredictRequest asks for a single prediction against a stored model
type PredictRequest struct {
	// Features is the raw feature map; keys are the model's input columns.
	Features map[string]any `json:"features" validate:"required"`
}

// BatchPredictRequest asks for predictions over many inputs
type BatchPredictRequest struct {
	Items []map[string]any `json:"items" validate:"required,min=1"`
	// Concurrency bounds the worker pool; 0 means the server default, and
	// values above the server ceiling are clamped.
	Concurrency int `json:"concurrency" validate:"omitempty,min=0"`
	// TimeoutSeconds bounds the whole batch; 0 means the server default.
	TimeoutSeconds float64 `json:"timeout_seconds" validate:"omitempty,min=0"`
}

// TrainRequest submits a training job
type TrainRequest struct {
	// Name labels the resulting model bundle.
	Name string `json:"name" validate:"required,min=1,max=100"`
	// DatasetPath points at a CSV or XLSX training file on the server.
	DatasetPath string `json:"dataset_path" validate:"required"`
	// SpecPath points at a model spec file (JSON or YAML). Exactly one of
	// SpecPath and Spec must be set.
	SpecPath string `json:"spec_path,omitempty"`
	// Spec inlines the model spec.
	Spec map[string]any `json:"spec,omitempty"`
}
