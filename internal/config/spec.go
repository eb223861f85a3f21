package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"
)

// ModelSpec is the validated model configuration handed to the forecasting
// engine. It is produced by an external configuration workflow; this package
// only loads and validates it.
type ModelSpec struct {
	// Mappings holds the ranked-category tables, keyed by mapping name
	// (e.g. "levels" -> {"E3": 0, "E4": 1, "E5": 2}).
	Mappings map[string]map[string]int `json:"mappings" yaml:"mappings"`

	Location LocationSettings `json:"location_settings" yaml:"location_settings"`
	Model    ModelSettings    `json:"model" yaml:"model"`

	// Encodings binds raw input columns to encoders. Encoded columns are
	// exposed to the model as "<column>_Enc".
	Encodings EncodingSettings `json:"encodings" yaml:"encodings"`
}

// LocationSettings configures the geo proximity capability
type LocationSettings struct {
	// ReferenceCity is the expensive anchor city that defines zone 1.
	ReferenceCity string `json:"reference_city" yaml:"reference_city"`
	// Cities maps known city names to coordinates.
	Cities map[string]Coordinates `json:"cities" yaml:"cities"`
	// ZoneThresholdsKm holds three ascending distances; a location within
	// the first threshold of the reference city is zone 1, within the
	// second zone 2, within the third zone 3, otherwise zone 4.
	ZoneThresholdsKm []float64 `json:"zone_thresholds_km" yaml:"zone_thresholds_km"`
}

// Coordinates is a latitude/longitude pair in degrees
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// ModelSettings configures targets, quantiles, features and hyperparameters
type ModelSettings struct {
	Targets   []string  `json:"targets" yaml:"targets"`
	Quantiles []float64 `json:"quantiles" yaml:"quantiles"`
	Features  []Feature `json:"features" yaml:"features"`

	// SampleWeightK is the recency decay exponent: weight = (1+age)^-k.
	SampleWeightK float64 `json:"sample_weight_k" yaml:"sample_weight_k"`
	// DateColumn names the column used for sample weighting and date
	// normalization.
	DateColumn string `json:"date_column" yaml:"date_column"`
	// RemoveOutliers enables IQR-based outlier removal per target column
	// before training.
	RemoveOutliers bool `json:"remove_outliers" yaml:"remove_outliers"`

	Hyperparameters Hyperparameters `json:"hyperparameters" yaml:"hyperparameters"`
}

// Feature describes one model input column and its monotonic constraint.
// The ordered feature list and the constraint vector derived from it are
// positionally aligned at the boosting boundary.
type Feature struct {
	Name string `json:"name" yaml:"name"`
	// MonotoneConstraint is -1 (non-increasing), 0 (unconstrained) or
	// 1 (non-decreasing).
	MonotoneConstraint int `json:"monotone_constraint" yaml:"monotone_constraint"`
}

// Hyperparameters groups training and cross-validation parameters
type Hyperparameters struct {
	Training TrainingParams `json:"training" yaml:"training"`
	CV       CVParams       `json:"cv" yaml:"cv"`
}

// TrainingParams configures the boosting algorithm
type TrainingParams struct {
	Objective      string  `json:"objective" yaml:"objective"`
	LearningRate   float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxDepth       int     `json:"max_depth" yaml:"max_depth"`
	MinChildWeight float64 `json:"min_child_weight" yaml:"min_child_weight"`
	Lambda         float64 `json:"lambda" yaml:"lambda"`
	Verbosity      int     `json:"verbosity" yaml:"verbosity"`
}

// CVParams configures cross-validation and early stopping
type CVParams struct {
	NumBoostRound       int   `json:"num_boost_round" yaml:"num_boost_round"`
	NFold               int   `json:"nfold" yaml:"nfold"`
	EarlyStoppingRounds int   `json:"early_stopping_rounds" yaml:"early_stopping_rounds"`
	VerboseEval         bool  `json:"verbose_eval" yaml:"verbose_eval"`
	Seed                int64 `json:"seed" yaml:"seed"`
}

// EncodingSettings binds raw columns to encoders
type EncodingSettings struct {
	// Ranked maps a raw column to the name of its mapping table.
	Ranked map[string]string `json:"ranked" yaml:"ranked"`
	// Proximity lists raw location columns encoded as cost zones.
	Proximity []string `json:"proximity" yaml:"proximity"`
	// CostOfLiving lists raw location columns encoded as cost-of-living tiers.
	CostOfLiving []string `json:"cost_of_living" yaml:"cost_of_living"`
	// MetroPopulation lists raw location columns encoded as metro populations.
	MetroPopulation []string `json:"metro_population" yaml:"metro_population"`
	// NormalizedDate, when true, exposes the date column normalized to
	// [0,1] as "<DateColumn>_Norm".
	NormalizedDate bool `json:"normalized_date" yaml:"normalized_date"`
}

// DefaultTrainingParams returns the default boosting parameters
func DefaultTrainingParams() TrainingParams {
	return TrainingParams{
		Objective:      "reg:quantileerror",
		LearningRate:   0.3,
		MaxDepth:       6,
		MinChildWeight: 1.0,
		Lambda:         1.0,
		Verbosity:      0,
	}
}

// DefaultCVParams returns the default cross-validation parameters
func DefaultCVParams() CVParams {
	return CVParams{
		NumBoostRound:       100,
		NFold:               5,
		EarlyStoppingRounds: 10,
		VerboseEval:         false,
		Seed:                42,
	}
}

// LoadModelSpec reads and validates a model spec from a JSON or YAML file
func LoadModelSpec(path string) (*ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model spec: %w", err)
	}

	var spec ModelSpec
	if json.Valid(data) {
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("failed to parse model spec: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("failed to parse model spec: %w", err)
		}
	}

	spec.ApplyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("model spec validation failed: %w", err)
	}
	return &spec, nil
}

// ApplyDefaults fills unset hyperparameters with defaults
func (s *ModelSpec) ApplyDefaults() {
	defaults := DefaultTrainingParams()
	t := &s.Model.Hyperparameters.Training
	if t.Objective == "" {
		t.Objective = defaults.Objective
	}
	if t.LearningRate == 0 {
		t.LearningRate = defaults.LearningRate
	}
	if t.MaxDepth == 0 {
		t.MaxDepth = defaults.MaxDepth
	}
	if t.MinChildWeight == 0 {
		t.MinChildWeight = defaults.MinChildWeight
	}
	if t.Lambda == 0 {
		t.Lambda = defaults.Lambda
	}

	cvDefaults := DefaultCVParams()
	cv := &s.Model.Hyperparameters.CV
	if cv.NumBoostRound == 0 {
		cv.NumBoostRound = cvDefaults.NumBoostRound
	}
	if cv.NFold == 0 {
		cv.NFold = cvDefaults.NFold
	}
	if cv.EarlyStoppingRounds == 0 {
		cv.EarlyStoppingRounds = cvDefaults.EarlyStoppingRounds
	}
	if cv.Seed == 0 {
		cv.Seed = cvDefaults.Seed
	}

	if s.Model.SampleWeightK == 0 {
		s.Model.SampleWeightK = 1.0
	}
	if s.Model.DateColumn == "" {
		s.Model.DateColumn = "Date"
	}
}

// Validate checks the spec's structural invariants
func (s *ModelSpec) Validate() error {
	if len(s.Model.Targets) == 0 {
		return fmt.Errorf("model spec requires at least one target")
	}
	if len(s.Model.Quantiles) == 0 {
		return fmt.Errorf("model spec requires at least one quantile")
	}
	for _, q := range s.Model.Quantiles {
		if q <= 0 || q > 1 || math.IsNaN(q) {
			return fmt.Errorf("quantile %v is outside (0, 1]", q)
		}
	}
	if len(s.Model.Features) == 0 {
		return fmt.Errorf("model spec requires at least one feature")
	}
	for _, f := range s.Model.Features {
		if f.Name == "" {
			return fmt.Errorf("feature with empty name")
		}
		if f.MonotoneConstraint < -1 || f.MonotoneConstraint > 1 {
			return fmt.Errorf("feature %q has invalid monotone constraint %d", f.Name, f.MonotoneConstraint)
		}
	}
	for col, mapping := range s.Encodings.Ranked {
		table, ok := s.Mappings[mapping]
		if !ok {
			return fmt.Errorf("ranked column %q references unknown mapping %q", col, mapping)
		}
		for value, rank := range table {
			if rank < 0 {
				return fmt.Errorf("mapping %q assigns negative rank %d to %q", mapping, rank, value)
			}
		}
	}
	if s.Model.SampleWeightK < 0 {
		return fmt.Errorf("sample_weight_k must be non-negative, got %v", s.Model.SampleWeightK)
	}
	cv := s.Model.Hyperparameters.CV
	if cv.NFold < 2 {
		return fmt.Errorf("cv nfold must be at least 2, got %d", cv.NFold)
	}
	if cv.NumBoostRound < 1 {
		return fmt.Errorf("cv num_boost_round must be positive, got %d", cv.NumBoostRound)
	}
	return nil
}

// FeatureNames returns the ordered model input column names
func (s *ModelSpec) FeatureNames() []string {
	names := make([]string, len(s.Model.Features))
	for i, f := range s.Model.Features {
		names[i] = f.Name
	}
	return names
}

// MonotoneConstraints returns the constraint vector positionally aligned
// with FeatureNames
func (s *ModelSpec) MonotoneConstraints() []int {
	constraints := make([]int, len(s.Model.Features))
	for i, f := range s.Model.Features {
		constraints[i] = f.MonotoneConstraint
	}
	return constraints
}

// QuantileLabel formats a quantile as its percent label, e.g. 0.5 -> "p50".
// Quantiles must be chosen so integer-percent labels are unique per target
// (0.10 and 0.101 would collide); this is a documented constraint on spec
// authors, not something the engine validates.
func QuantileLabel(q float64) string {
	return fmt.Sprintf("p%d", int(math.Round(q*100)))
}

// ModelKey returns the model bank key for a (target, quantile) pair,
// e.g. "TotalComp_p50"
func ModelKey(target string, q float64) string {
	return fmt.Sprintf("%s_%s", target, QuantileLabel(q))
}
