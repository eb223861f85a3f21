package quantile

import (
	"fmt"
	"math/rand"
)

// MetricTestQuantileMean is the cross-validation metric the training
// orchestrator selects the boosting round on.
const MetricTestQuantileMean = "test-quantile-mean"

// CVConfig configures k-fold cross-validation
type CVConfig struct {
	NumBoostRound       int
	NFold               int
	EarlyStoppingRounds int
	Seed                int64
}

// CVResult reports per-round evaluation metrics and the selected round
type CVResult struct {
	// Metrics maps metric name to one value per boosting round actually run.
	Metrics map[string][]float64
	// BestRound is the 1-based round with the lowest held-out loss.
	BestRound int
	// BestScore is the held-out loss at BestRound.
	BestScore float64
}

// CrossValidate runs k-fold cross-validation with early stopping. Each fold
// trains its own booster round by round; after every round the mean held-out
// pinball loss across folds is recorded. Training stops when the mean loss
// has not improved for EarlyStoppingRounds rounds.
func CrossValidate(p Params, x [][]float64, y, weights []float64, cfg CVConfig) (*CVResult, error) {
	if cfg.NFold < 2 {
		return nil, fmt.Errorf("cross-validation requires at least 2 folds, got %d", cfg.NFold)
	}
	if len(y) < cfg.NFold {
		return nil, fmt.Errorf("dataset has %d rows, fewer than %d folds", len(y), cfg.NFold)
	}

	folds := assignFolds(len(y), cfg.NFold, cfg.Seed)

	type fold struct {
		booster       *Booster
		trainX, testX [][]float64
		trainY, testY []float64
		trainW, testW []float64
	}

	parts := make([]*fold, cfg.NFold)
	for f := 0; f < cfg.NFold; f++ {
		part := &fold{}
		for i := range y {
			w := 1.0
			if weights != nil {
				w = weights[i]
			}
			if folds[i] == f {
				part.testX = append(part.testX, x[i])
				part.testY = append(part.testY, y[i])
				part.testW = append(part.testW, w)
			} else {
				part.trainX = append(part.trainX, x[i])
				part.trainY = append(part.trainY, y[i])
				part.trainW = append(part.trainW, w)
			}
		}
		if len(part.trainY) == 0 || len(part.testY) == 0 {
			return nil, fmt.Errorf("fold %d is empty", f)
		}
		part.booster = NewBooster(p, part.trainY, part.trainW)
		parts[f] = part
	}

	result := &CVResult{
		Metrics:   map[string][]float64{MetricTestQuantileMean: nil},
		BestRound: 0,
	}
	best := 0.0
	sinceBest := 0

	for round := 1; round <= cfg.NumBoostRound; round++ {
		var sum float64
		for _, part := range parts {
			part.booster.BoostRound(part.trainX, part.trainY, part.trainW)
			preds := part.booster.PredictBatch(part.testX)
			sum += PinballLoss(part.testY, preds, part.testW, p.Quantile)
		}
		mean := sum / float64(len(parts))
		result.Metrics[MetricTestQuantileMean] = append(result.Metrics[MetricTestQuantileMean], mean)

		if result.BestRound == 0 || mean < best {
			best = mean
			result.BestRound = round
			result.BestScore = mean
			sinceBest = 0
		} else {
			sinceBest++
			if cfg.EarlyStoppingRounds > 0 && sinceBest >= cfg.EarlyStoppingRounds {
				break
			}
		}
	}

	return result, nil
}

// assignFolds deals rows into folds round-robin after a seeded shuffle
func assignFolds(n, nfold int, seed int64) []int {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([]int, n)
	for i, p := range perm {
		folds[p] = i % nfold
	}
	return folds
}
