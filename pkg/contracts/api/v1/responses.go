package api

import "time"

// ModelSummary is one entry of the model listing
type ModelSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Targets   []string  `json:"targets"`
	Quantiles []float64 `json:"quantiles"`
}

// PredictResponse carries one prediction
type PredictResponse struct {
	ModelID     string                        `json:"model_id"`
	Predictions map[string]map[string]float64 `json:"predictions"`
	Metadata    PredictionMetadata            `json:"metadata"`
}

// PredictionMetadata accompanies every prediction
type PredictionMetadata struct {
	Targets       []string  `json:"targets"`
	Quantiles     []float64 `json:"quantiles"`
	ProximityZone *int      `json:"proximity_zone,omitempty"`
}

// BatchItemResponse is one entry of a batch response. Exactly one of Result
// and Error is set; Status classifies the outcome.
type BatchItemResponse struct {
	Index  int              `json:"index"`
	Status string           `json:"status"`
	Result *PredictResponse `json:"result,omitempty"`
	Error  *BatchItemError  `json:"error,omitempty"`
}

// BatchItemError describes a per-item failure
type BatchItemError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
}

// BatchPredictResponse enumerates exactly one outcome per input index
type BatchPredictResponse struct {
	ModelID string              `json:"model_id"`
	Items   []BatchItemResponse `json:"items"`
}

// TrainResponse acknowledges a submitted training job
type TrainResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}
