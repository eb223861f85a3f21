package quantile

import (
	"encoding/json"
	"fmt"
)

// Params configure booster training
type Params struct {
	Quantile       float64 `json:"quantile"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinChildWeight float64 `json:"min_child_weight"`
	Lambda         float64 `json:"lambda"`
	// MonotoneConstraints align positionally with the feature columns;
	// each entry is -1, 0 or 1.
	MonotoneConstraints []int `json:"monotone_constraints"`
}

// Booster is an additive ensemble of quantile regression trees
type Booster struct {
	BaseScore float64 `json:"base_score"`
	Trees     []*Tree `json:"trees"`
	Params    Params  `json:"params"`

	// training state, not serialized
	preds []float64
}

// NewBooster creates an untrained booster for the given parameters, using
// the weighted q-quantile of y as the base score.
func NewBooster(p Params, y, weights []float64) *Booster {
	base := WeightedQuantile(y, weights, p.Quantile)
	return &Booster{BaseScore: base, Params: p}
}

// BoostRound grows one more tree against the current residuals. Callers
// drive the loop so cross-validation can evaluate after every round.
func (b *Booster) BoostRound(x [][]float64, y, weights []float64) {
	if b.preds == nil {
		b.preds = make([]float64, len(y))
		for i := range b.preds {
			b.preds[i] = b.BaseScore
		}
	}

	grads := negativeGradients(y, b.preds, b.Params.Quantile)
	residuals := make([]float64, len(y))
	for i := range y {
		residuals[i] = y[i] - b.preds[i]
	}

	w := weights
	if w == nil {
		w = make([]float64, len(y))
		for i := range w {
			w[i] = 1
		}
	}

	tree := growTree(x, grads, residuals, w, treeParams{
		quantile:       b.Params.Quantile,
		maxDepth:       b.Params.MaxDepth,
		minChildWeight: b.Params.MinChildWeight,
		lambda:         b.Params.Lambda,
		constraints:    b.Params.MonotoneConstraints,
	})
	b.Trees = append(b.Trees, tree)

	for i := range b.preds {
		b.preds[i] += b.Params.LearningRate * tree.Predict(x[i])
	}
}

// Rounds returns the number of boosting rounds trained so far
func (b *Booster) Rounds() int {
	return len(b.Trees)
}

// Truncate drops trees beyond the given round count. Used after CV picks
// the best round.
func (b *Booster) Truncate(rounds int) {
	if rounds < len(b.Trees) {
		b.Trees = b.Trees[:rounds]
	}
	b.preds = nil
}

// Predict evaluates the ensemble for one feature vector
func (b *Booster) Predict(features []float64) float64 {
	out := b.BaseScore
	for _, tree := range b.Trees {
		out += b.Params.LearningRate * tree.Predict(features)
	}
	return out
}

// PredictBatch evaluates the ensemble for a feature matrix
func (b *Booster) PredictBatch(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = b.Predict(row)
	}
	return out
}

// Train fits a booster for the given number of rounds
func Train(p Params, x [][]float64, y, weights []float64, rounds int) *Booster {
	b := NewBooster(p, y, weights)
	for i := 0; i < rounds; i++ {
		b.BoostRound(x, y, weights)
	}
	b.preds = nil
	return b
}

// MarshalBooster serializes a booster to JSON
func MarshalBooster(b *Booster) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal booster: %w", err)
	}
	return data, nil
}

// UnmarshalBooster restores a booster from JSON
func UnmarshalBooster(data []byte) (*Booster, error) {
	var b Booster
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal booster: %w", err)
	}
	return &b, nil
}
