// Package forecast trains and evaluates the per-(target, quantile) model
// bank: feature encoding, cross-validated boosting with early stopping, and
// the mandatory full-data refit at the selected round.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"paycast/internal/config"
	"paycast/internal/dataset"
	"paycast/internal/encode"
	apperrors "paycast/internal/errors"
	"paycast/internal/geo"
	"paycast/internal/quantile"
)

// Forecaster owns the encoders and the trained model bank for one model
// spec. All dependencies are injected at construction; there is no global
// configuration state.
type Forecaster struct {
	spec     *config.ModelSpec
	logger   *slog.Logger
	sources  []featureSource
	ranked   map[string]*encode.RankedCategoryEncoder
	prox     *encode.ProximityEncoder
	col      *encode.CostOfLivingEncoder
	pop      *encode.MetroPopulationEncoder
	norm     *encode.DateNormalizer
	weighter *encode.SampleWeighter

	// bank maps "<target>_<pNN>" to its trained booster. Empty until Train
	// succeeds; Train never leaves a partially filled bank behind.
	bank map[string]*quantile.Booster
}

// ModelReport summarizes cross-validation for one trained model
type ModelReport struct {
	BestRound int     `json:"best_round"`
	BestScore float64 `json:"best_score"`
	Rows      int     `json:"rows"`
}

// TrainResult reports the outcome of a full training run
type TrainResult struct {
	Models map[string]ModelReport `json:"models"`
}

// New creates an untrained forecaster for the given spec
func New(spec *config.ModelSpec, logger *slog.Logger) (*Forecaster, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sources, err := resolveFeatures(spec)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid feature bindings", err)
	}

	zones := geo.NewMapper(spec.Location)
	ranked := make(map[string]*encode.RankedCategoryEncoder, len(spec.Encodings.Ranked))
	for col, mappingName := range spec.Encodings.Ranked {
		table, ok := spec.Mappings[mappingName]
		if !ok {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("ranked column %q references unknown mapping %q", col, mappingName), nil)
		}
		ranked[col] = encode.NewRankedCategoryEncoder(table)
	}

	return &Forecaster{
		spec:     spec,
		logger:   logger,
		sources:  sources,
		ranked:   ranked,
		prox:     encode.NewProximityEncoder(zones),
		col:      encode.NewCostOfLivingEncoder(zones),
		pop:      encode.NewMetroPopulationEncoder(zones),
		norm:     encode.NewDateNormalizer(),
		weighter: encode.NewSampleWeighter(spec.Model.SampleWeightK, time.Time{}, logger),
		bank:     map[string]*quantile.Booster{},
	}, nil
}

// Restore rebuilds a trained forecaster from persisted state
func Restore(spec *config.ModelSpec, logger *slog.Logger, dateMin, dateMax time.Time, bank map[string]*quantile.Booster) (*Forecaster, error) {
	f, err := New(spec, logger)
	if err != nil {
		return nil, err
	}
	f.norm = encode.NewFittedDateNormalizer(dateMin, dateMax)
	f.bank = bank
	return f, nil
}

// Spec returns the model spec the forecaster was built from
func (f *Forecaster) Spec() *config.ModelSpec {
	return f.spec
}

// Bank returns the trained model bank keyed by "<target>_<pNN>"
func (f *Forecaster) Bank() map[string]*quantile.Booster {
	return f.bank
}

// Trained reports whether the model bank is populated
func (f *Forecaster) Trained() bool {
	return len(f.bank) > 0
}

// NormalizerBounds returns the fitted date normalization range
func (f *Forecaster) NormalizerBounds() (time.Time, time.Time) {
	return f.norm.Bounds()
}

// ProximityZone resolves a raw location value to its cost zone, for
// prediction metadata
func (f *Forecaster) ProximityZone(value any) int {
	return f.prox.Zone(value)
}

// RankedEncoder returns the ranked encoder for a raw column, if any
func (f *Forecaster) RankedEncoder(column string) (*encode.RankedCategoryEncoder, bool) {
	enc, ok := f.ranked[column]
	return enc, ok
}

// Train fits one model per (target, quantile) pair: k-fold CV with early
// stopping picks the boosting round, then the model is refit on the full
// dataset at that round. Any failure aborts the whole run and leaves the
// existing bank untouched.
func (f *Forecaster) Train(ctx context.Context, tbl *dataset.Table, observer ProgressObserver) (*TrainResult, error) {
	if observer == nil {
		observer = NopObserver{}
	}
	targets := f.spec.Model.Targets
	quantiles := f.spec.Model.Quantiles
	observer.TrainingStarted(targets, quantiles)

	if err := f.fitEncoders(tbl); err != nil {
		return nil, err
	}

	matrix, err := f.buildMatrix(tbl)
	if err != nil {
		return nil, err
	}
	weights := f.sampleWeights(tbl)

	params := f.spec.Model.Hyperparameters.Training
	cvParams := f.spec.Model.Hyperparameters.CV

	newBank := make(map[string]*quantile.Booster, len(targets)*len(quantiles))
	result := &TrainResult{Models: make(map[string]ModelReport)}

	for _, target := range targets {
		y, err := tbl.Floats(target)
		if err != nil {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("target column %q is not numeric", target), err)
		}

		x, ty, tw := matrix, y, weights
		if f.spec.Model.RemoveOutliers {
			x, ty, tw = filterOutliers(matrix, y, weights)
			f.logger.Info("outlier removal applied",
				"target", target, "kept", len(ty), "total", len(y))
		}

		for _, q := range quantiles {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			key := config.ModelKey(target, q)

			bp := quantile.Params{
				Quantile:            q,
				LearningRate:        params.LearningRate,
				MaxDepth:            params.MaxDepth,
				MinChildWeight:      params.MinChildWeight,
				Lambda:              params.Lambda,
				MonotoneConstraints: f.spec.MonotoneConstraints(),
			}

			observer.CVStarted(target, q)
			cv, err := quantile.CrossValidate(bp, x, ty, tw, quantile.CVConfig{
				NumBoostRound:       cvParams.NumBoostRound,
				NFold:               cvParams.NFold,
				EarlyStoppingRounds: cvParams.EarlyStoppingRounds,
				Seed:                cvParams.Seed,
			})
			if err != nil {
				return nil, apperrors.NewConfigurationError(
					fmt.Sprintf("cross-validation failed for %s", key), err)
			}

			losses, ok := cv.Metrics[quantile.MetricTestQuantileMean]
			if !ok || len(losses) == 0 {
				return nil, apperrors.NewConfigurationError(
					fmt.Sprintf("cross-validation for %s produced no %q metric",
						key, quantile.MetricTestQuantileMean), nil)
			}
			observer.CVFinished(target, q, cv.BestRound, cv.BestScore)
			f.logger.Info("cross-validation complete",
				"model", key, "best_round", cv.BestRound, "best_score", cv.BestScore)

			newBank[key] = quantile.Train(bp, x, ty, tw, cv.BestRound)
			result.Models[key] = ModelReport{
				BestRound: cv.BestRound,
				BestScore: cv.BestScore,
				Rows:      len(ty),
			}
		}
	}

	f.bank = newBank
	return result, nil
}

// fitEncoders fits the stateful encoders against the training table
func (f *Forecaster) fitEncoders(tbl *dataset.Table) error {
	if !f.spec.Encodings.NormalizedDate {
		return nil
	}
	col := f.spec.Model.DateColumn
	dates, err := tbl.Column(col)
	if err != nil {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("date normalization enabled but column %q is missing", col), err)
	}
	return f.norm.Fit(dates)
}

// sampleWeights computes recency weights from the date column, falling back
// to uniform weights when the column is absent
func (f *Forecaster) sampleWeights(tbl *dataset.Table) []float64 {
	col := f.spec.Model.DateColumn
	dates, err := tbl.Column(col)
	if err != nil {
		f.logger.Warn("date column missing, using uniform sample weights", "column", col)
		weights := make([]float64, tbl.Len())
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}
	return f.weighter.Transform(dates)
}

// buildMatrix encodes the training table into the ordered feature matrix
func (f *Forecaster) buildMatrix(tbl *dataset.Table) ([][]float64, error) {
	columns := make([][]float64, len(f.sources))
	for i, src := range f.sources {
		col, err := f.encodeColumn(tbl, src)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}

	matrix := make([][]float64, tbl.Len())
	for r := range matrix {
		row := make([]float64, len(columns))
		for c := range columns {
			row[c] = columns[c][r]
		}
		matrix[r] = row
	}
	return matrix, nil
}

func (f *Forecaster) encodeColumn(tbl *dataset.Table, src featureSource) ([]float64, error) {
	if src.kind == kindRaw {
		col, err := tbl.Floats(src.column)
		if err != nil {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("feature column %q is not numeric", src.column), err)
		}
		return col, nil
	}

	cells, err := tbl.Column(src.column)
	if err != nil {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("feature %q needs column %q", src.name, src.column), err)
	}

	switch src.kind {
	case kindRanked:
		return f.ranked[src.column].Transform(cells), nil
	case kindProximity:
		return f.prox.Transform(cells), nil
	case kindCostOfLiving:
		return f.col.Transform(cells), nil
	case kindMetroPopulation:
		return f.pop.Transform(cells), nil
	case kindNormalizedDate:
		return f.norm.Transform(cells)
	default:
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("feature %q has unknown encoder", src.name), nil)
	}
}

// EncodeRow encodes one raw feature map into the ordered feature vector.
// Encoding is lenient: unknown categories become the unknown sentinel and
// unknown locations the default zone. Strict vocabulary checks live in the
// validation layer.
func (f *Forecaster) EncodeRow(features map[string]any) ([]float64, error) {
	row := make([]float64, len(f.sources))
	for i, src := range f.sources {
		value := features[src.column]
		switch src.kind {
		case kindRaw:
			v, err := numeric(value)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", src.column, err)
			}
			row[i] = v
		case kindRanked:
			if r := f.ranked[src.column].Encode(value); r.Known {
				row[i] = float64(r.Value)
			} else {
				row[i] = encode.UnknownRank
			}
		case kindProximity:
			row[i] = float64(f.prox.Zone(value))
		case kindCostOfLiving:
			row[i] = f.col.Transform([]any{value})[0]
		case kindMetroPopulation:
			row[i] = f.pop.Transform([]any{value})[0]
		case kindNormalizedDate:
			encoded, err := f.norm.Transform([]any{value})
			if err != nil {
				return nil, err
			}
			row[i] = encoded[0]
		}
	}
	return row, nil
}

// Predict evaluates every model in the bank against one raw feature map and
// returns predictions keyed by target then quantile label.
func (f *Forecaster) Predict(features map[string]any) (map[string]map[string]float64, error) {
	if !f.Trained() {
		return nil, apperrors.NewConfigurationError("model bank is empty", nil)
	}

	row, err := f.EncodeRow(features)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]float64, len(f.spec.Model.Targets))
	for _, target := range f.spec.Model.Targets {
		byQuantile := make(map[string]float64, len(f.spec.Model.Quantiles))
		for _, q := range f.spec.Model.Quantiles {
			key := config.ModelKey(target, q)
			booster, ok := f.bank[key]
			if !ok {
				return nil, apperrors.NewConfigurationError(
					fmt.Sprintf("model bank is missing %s", key), nil)
			}
			byQuantile[config.QuantileLabel(q)] = booster.Predict(row)
		}
		out[target] = byQuantile
	}
	return out, nil
}

// filterOutliers drops rows whose target value fails the IQR test
func filterOutliers(x [][]float64, y, w []float64) ([][]float64, []float64, []float64) {
	keep := quantile.IQROutlierMask(y)
	var fx [][]float64
	var fy, fw []float64
	for i, k := range keep {
		if !k {
			continue
		}
		fx = append(fx, x[i])
		fy = append(fy, y[i])
		if w != nil {
			fw = append(fw, w[i])
		}
	}
	if w == nil {
		fw = nil
	}
	return fx, fy, fw
}
