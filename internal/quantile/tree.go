package quantile

import (
	"math"
	"sort"
)

// Node is a single tree node. Leaves carry Value; internal nodes split on
// Feature at Threshold with "go left when x <= threshold" semantics.
type Node struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
}

// Tree is a regression tree grown on pinball gradients. Leaf values are the
// weighted q-quantile of the residuals that reach the leaf, which is what
// makes the additive model track the requested quantile instead of the mean.
type Tree struct {
	Root *Node `json:"root"`
}

// treeParams bundle the growth parameters for one tree
type treeParams struct {
	quantile       float64
	maxDepth       int
	minChildWeight float64
	lambda         float64
	// constraints[f] in {-1, 0, 1}: direction the prediction must move as
	// feature f grows.
	constraints []int
}

// growTree fits one tree. Splits are chosen by squared-error gain on the
// negative gradients; leaf values come from the residual quantile. Monotone
// constraints are enforced twice: candidate splits whose child values point
// the wrong way are rejected, and every leaf is clipped into the value
// bounds inherited from its ancestors.
func growTree(x [][]float64, grads, residuals, weights []float64, p treeParams) *Tree {
	rows := make([]int, len(grads))
	for i := range rows {
		rows[i] = i
	}
	root := buildNode(x, grads, residuals, weights, rows, p, 0, math.Inf(-1), math.Inf(1))
	return &Tree{Root: root}
}

func buildNode(x [][]float64, grads, residuals, weights []float64, rows []int, p treeParams, depth int, lower, upper float64) *Node {
	value := clamp(leafValue(residuals, weights, rows, p.quantile), lower, upper)

	if depth >= p.maxDepth || len(rows) < 2 {
		return &Node{Leaf: true, Value: value}
	}

	split, ok := bestSplit(x, grads, residuals, weights, rows, p)
	if !ok {
		return &Node{Leaf: true, Value: value}
	}

	leftLower, leftUpper := lower, upper
	rightLower, rightUpper := lower, upper
	if c := constraintFor(p, split.feature); c != 0 {
		leftVal := clamp(split.leftValue, lower, upper)
		rightVal := clamp(split.rightValue, lower, upper)
		mid := (leftVal + rightVal) / 2
		if c > 0 {
			leftUpper = math.Min(leftUpper, mid)
			rightLower = math.Max(rightLower, mid)
		} else {
			leftLower = math.Max(leftLower, mid)
			rightUpper = math.Min(rightUpper, mid)
		}
	}

	return &Node{
		Feature:   split.feature,
		Threshold: split.threshold,
		Value:     value,
		Left:      buildNode(x, grads, residuals, weights, split.left, p, depth+1, leftLower, leftUpper),
		Right:     buildNode(x, grads, residuals, weights, split.right, p, depth+1, rightLower, rightUpper),
	}
}

type splitResult struct {
	feature     int
	threshold   float64
	left, right []int
	leftValue   float64
	rightValue  float64
}

func bestSplit(x [][]float64, grads, residuals, weights []float64, rows []int, p treeParams) (splitResult, bool) {
	if len(rows) == 0 {
		return splitResult{}, false
	}
	features := len(x[rows[0]])

	var best splitResult
	bestGain := 1e-9
	found := false

	for f := 0; f < features; f++ {
		sorted := make([]int, len(rows))
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool { return x[sorted[i]][f] < x[sorted[j]][f] })

		var totalG, totalW float64
		for _, r := range sorted {
			totalG += grads[r] * weights[r]
			totalW += weights[r]
		}
		if totalW <= 0 {
			continue
		}
		parentScore := totalG * totalG / (totalW + p.lambda)

		var leftG, leftW float64
		for i := 0; i < len(sorted)-1; i++ {
			r := sorted[i]
			leftG += grads[r] * weights[r]
			leftW += weights[r]

			// cannot split between equal feature values
			if x[sorted[i]][f] == x[sorted[i+1]][f] {
				continue
			}

			rightW := totalW - leftW
			if leftW < p.minChildWeight || rightW < p.minChildWeight {
				continue
			}

			rightG := totalG - leftG
			gain := leftG*leftG/(leftW+p.lambda) + rightG*rightG/(rightW+p.lambda) - parentScore
			if gain <= bestGain {
				continue
			}

			leftRows := sorted[:i+1]
			rightRows := sorted[i+1:]
			lv := leafValue(residuals, weights, leftRows, p.quantile)
			rv := leafValue(residuals, weights, rightRows, p.quantile)

			if c := constraintFor(p, f); c != 0 {
				if c > 0 && lv > rv {
					continue
				}
				if c < 0 && lv < rv {
					continue
				}
			}

			bestGain = gain
			best = splitResult{
				feature:    f,
				threshold:  (x[sorted[i]][f] + x[sorted[i+1]][f]) / 2,
				left:       append([]int(nil), leftRows...),
				right:      append([]int(nil), rightRows...),
				leftValue:  lv,
				rightValue: rv,
			}
			found = true
		}
	}

	return best, found
}

func leafValue(residuals, weights []float64, rows []int, q float64) float64 {
	vals := make([]float64, len(rows))
	ws := make([]float64, len(rows))
	for i, r := range rows {
		vals[i] = residuals[r]
		ws[i] = weights[r]
	}
	return WeightedQuantile(vals, ws, q)
}

func constraintFor(p treeParams, feature int) int {
	if feature < len(p.constraints) {
		return p.constraints[feature]
	}
	return 0
}

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}

// Predict evaluates the tree for one feature vector
func (t *Tree) Predict(features []float64) float64 {
	node := t.Root
	for node != nil && !node.Leaf {
		if features[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	if node == nil {
		return 0
	}
	return node.Value
}
