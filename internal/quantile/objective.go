// Package quantile implements gradient-boosted regression trees for
// quantile (pinball) objectives with per-feature monotone constraints.
package quantile

import "sort"

// PinballLoss returns the mean weighted pinball loss at quantile q.
// Rows with non-positive weight are ignored.
func PinballLoss(y, pred, w []float64, q float64) float64 {
	var loss, totalW float64
	for i := range y {
		weight := 1.0
		if w != nil {
			weight = w[i]
		}
		if weight <= 0 {
			continue
		}
		diff := y[i] - pred[i]
		if diff >= 0 {
			loss += weight * q * diff
		} else {
			loss += weight * (q - 1) * diff
		}
		totalW += weight
	}
	if totalW == 0 {
		return 0
	}
	return loss / totalW
}

// negativeGradients returns the negative pinball gradients, the targets each
// boosting round fits its tree to: q where the model underpredicts, q-1
// where it overpredicts.
func negativeGradients(y, pred []float64, q float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		if y[i] > pred[i] {
			out[i] = q
		} else {
			out[i] = q - 1
		}
	}
	return out
}

// WeightedQuantile returns the q-quantile of values under the given weights:
// the smallest value whose cumulative weight reaches q of the total. Nil
// weights mean uniform. Empty input returns 0.
func WeightedQuantile(values, weights []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}

	type pair struct {
		v, w float64
	}
	pairs := make([]pair, 0, len(values))
	var total float64
	for i, v := range values {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if w <= 0 {
			continue
		}
		pairs = append(pairs, pair{v, w})
		total += w
	}
	if len(pairs) == 0 {
		return 0
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })

	target := q * total
	var cum float64
	for _, p := range pairs {
		cum += p.w
		if cum >= target {
			return p.v
		}
	}
	return pairs[len(pairs)-1].v
}
