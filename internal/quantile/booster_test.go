package quantile

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticData(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		level := float64(rng.Intn(5))
		zone := float64(1 + rng.Intn(4))
		x[i] = []float64{level, zone}
		// salary grows with level, shrinks with zone distance, plus noise
		y[i] = 50000 + 20000*level - 5000*zone + rng.NormFloat64()*4000
	}
	return x, y
}

func testParams(q float64, constraints []int) Params {
	return Params{
		Quantile:            q,
		LearningRate:        0.3,
		MaxDepth:            4,
		MinChildWeight:      1,
		Lambda:              1,
		MonotoneConstraints: constraints,
	}
}

func TestBooster_FitsConstantTarget(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {3}}
	y := []float64{100, 100, 100, 100}

	b := Train(testParams(0.5, nil), x, y, nil, 10)
	for _, row := range x {
		assert.InDelta(t, 100, b.Predict(row), 1e-6)
	}
}

func TestBooster_ReducesLoss(t *testing.T) {
	x, y := syntheticData(200, 1)
	p := testParams(0.5, nil)

	base := NewBooster(p, y, nil)
	start := make([]float64, len(y))
	for i := range start {
		start[i] = base.BaseScore
	}
	initial := PinballLoss(y, start, nil, 0.5)

	b := Train(p, x, y, nil, 30)
	final := PinballLoss(y, b.PredictBatch(x), nil, 0.5)

	assert.Less(t, final, initial/2, "boosting should cut training loss substantially")
}

func TestBooster_QuantileOrdering(t *testing.T) {
	x, y := syntheticData(300, 2)

	low := Train(testParams(0.25, nil), x, y, nil, 30)
	high := Train(testParams(0.75, nil), x, y, nil, 30)

	var lowSum, highSum float64
	for _, row := range x {
		lowSum += low.Predict(row)
		highSum += high.Predict(row)
	}
	assert.Less(t, lowSum, highSum,
		"p25 predictions should average below p75 predictions")
}

func TestBooster_QuantileCoverage(t *testing.T) {
	x, y := syntheticData(300, 3)
	b := Train(testParams(0.9, nil), x, y, nil, 40)

	covered := 0
	for i, row := range x {
		if y[i] <= b.Predict(row) {
			covered++
		}
	}
	frac := float64(covered) / float64(len(y))
	assert.Greater(t, frac, 0.75, "p90 model should cover most training targets")
}

func TestBooster_MonotoneIncreasing(t *testing.T) {
	x, y := syntheticData(300, 4)
	// level must push predictions up, zone must push them down
	b := Train(testParams(0.5, []int{1, -1}), x, y, nil, 30)

	for zone := 1.0; zone <= 4; zone++ {
		prev := b.Predict([]float64{0, zone})
		for level := 1.0; level <= 4; level++ {
			cur := b.Predict([]float64{level, zone})
			assert.GreaterOrEqual(t, cur, prev,
				"prediction must not drop from level %v to %v at zone %v", level-1, level, zone)
			prev = cur
		}
	}
}

func TestBooster_MonotoneDecreasing(t *testing.T) {
	x, y := syntheticData(300, 5)
	b := Train(testParams(0.5, []int{1, -1}), x, y, nil, 30)

	for level := 0.0; level <= 4; level++ {
		prev := b.Predict([]float64{level, 1})
		for zone := 2.0; zone <= 4; zone++ {
			cur := b.Predict([]float64{level, zone})
			assert.LessOrEqual(t, cur, prev,
				"prediction must not rise from zone %v to %v at level %v", zone-1, zone, level)
			prev = cur
		}
	}
}

func TestBooster_SampleWeightsShiftFit(t *testing.T) {
	// two clusters; weighting one heavily should pull the median toward it
	x := [][]float64{{0}, {0}, {0}, {0}}
	y := []float64{10, 10, 100, 100}

	wLow := []float64{10, 10, 0.1, 0.1}
	wHigh := []float64{0.1, 0.1, 10, 10}

	low := Train(testParams(0.5, nil), x, y, wLow, 10)
	high := Train(testParams(0.5, nil), x, y, wHigh, 10)

	assert.Less(t, low.Predict([]float64{0}), high.Predict([]float64{0}))
}

func TestBooster_Truncate(t *testing.T) {
	x, y := syntheticData(100, 6)
	b := Train(testParams(0.5, nil), x, y, nil, 20)
	require.Equal(t, 20, b.Rounds())

	b.Truncate(7)
	assert.Equal(t, 7, b.Rounds())
}

func TestBooster_SerializationRoundTrip(t *testing.T) {
	x, y := syntheticData(150, 7)
	b := Train(testParams(0.5, []int{1, -1}), x, y, nil, 15)

	data, err := MarshalBooster(b)
	require.NoError(t, err)

	restored, err := UnmarshalBooster(data)
	require.NoError(t, err)

	for _, row := range x[:20] {
		assert.InDelta(t, b.Predict(row), restored.Predict(row), 1e-9)
	}
}
