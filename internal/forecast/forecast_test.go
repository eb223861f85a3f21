package forecast

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paycast/internal/config"
	"paycast/internal/dataset"
	"paycast/internal/encode"
	apperrors "paycast/internal/errors"
)

func testSpec() *config.ModelSpec {
	spec := &config.ModelSpec{
		Mappings: map[string]map[string]int{
			"levels": {"E3": 0, "E4": 1, "E5": 2},
		},
		Location: config.LocationSettings{
			ReferenceCity: "San Francisco",
			Cities: map[string]config.Coordinates{
				"San Francisco": {Lat: 37.7749, Lon: -122.4194},
				"Seattle":       {Lat: 47.6062, Lon: -122.3321},
				"Austin":        {Lat: 30.2672, Lon: -97.7431},
				"London":        {Lat: 51.5074, Lon: -0.1278},
			},
			ZoneThresholdsKm: []float64{100, 1500, 3000},
		},
		Model: config.ModelSettings{
			Targets:   []string{"BaseSalary"},
			Quantiles: []float64{0.25, 0.5, 0.75},
			Features: []config.Feature{
				{Name: "Level_Enc", MonotoneConstraint: 1},
				{Name: "Location_Zone", MonotoneConstraint: -1},
			},
			SampleWeightK: 1,
			DateColumn:    "Date",
		},
		Encodings: config.EncodingSettings{
			Ranked:    map[string]string{"Level": "levels"},
			Proximity: []string{"Location"},
		},
	}
	spec.ApplyDefaults()
	spec.Model.Hyperparameters.CV.NumBoostRound = 25
	return spec
}

func trainingTable(t *testing.T, n int) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(99))
	levels := []string{"E3", "E4", "E5"}
	locations := []string{"San Francisco", "Seattle", "Austin", "London"}
	zones := map[string]float64{"San Francisco": 1, "Seattle": 2, "Austin": 3, "London": 4}

	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		level := levels[rng.Intn(len(levels))]
		location := locations[rng.Intn(len(locations))]
		rank := float64([]int{0, 1, 2}[indexOf(levels, level)])
		salary := 80000 + 30000*rank - 8000*zones[location] + rng.NormFloat64()*5000
		date := fmt.Sprintf("202%d-0%d-15", rng.Intn(5), 1+rng.Intn(9))
		rows[i] = []any{level, location, fmt.Sprintf("%.0f", salary), date}
	}

	tbl, err := dataset.NewTable([]string{"Level", "Location", "BaseSalary", "Date"}, rows)
	require.NoError(t, err)
	return tbl
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return -1
}

func trainedForecaster(t *testing.T) *Forecaster {
	t.Helper()
	f, err := New(testSpec(), nil)
	require.NoError(t, err)

	_, err = f.Train(context.Background(), trainingTable(t, 250), nil)
	require.NoError(t, err)
	return f
}

func TestForecaster_Train(t *testing.T) {
	f, err := New(testSpec(), nil)
	require.NoError(t, err)
	assert.False(t, f.Trained())

	result, err := f.Train(context.Background(), trainingTable(t, 250), nil)
	require.NoError(t, err)

	require.Len(t, f.Bank(), 3)
	for _, key := range []string{"BaseSalary_p25", "BaseSalary_p50", "BaseSalary_p75"} {
		assert.Contains(t, f.Bank(), key)
		report := result.Models[key]
		assert.GreaterOrEqual(t, report.BestRound, 1)
		assert.Equal(t, 250, report.Rows)
	}
}

func TestForecaster_ProgressEvents(t *testing.T) {
	f, err := New(testSpec(), nil)
	require.NoError(t, err)

	rec := &recordingObserver{}
	_, err = f.Train(context.Background(), trainingTable(t, 120), rec)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.started)
	assert.Equal(t, 3, rec.cvStarted)
	assert.Equal(t, 3, rec.cvFinished)
}

type recordingObserver struct {
	started    int
	cvStarted  int
	cvFinished int
}

func (r *recordingObserver) TrainingStarted([]string, []float64) { r.started++ }
func (r *recordingObserver) CVStarted(string, float64)           { r.cvStarted++ }
func (r *recordingObserver) CVFinished(string, float64, int, float64) {
	r.cvFinished++
}

func TestForecaster_MonotoneAcrossLevels(t *testing.T) {
	f := trainedForecaster(t)

	var prev float64
	for i, level := range []string{"E3", "E4", "E5"} {
		preds, err := f.Predict(map[string]any{"Level": level, "Location": "Seattle"})
		require.NoError(t, err)
		p50 := preds["BaseSalary"]["p50"]
		if i > 0 {
			assert.GreaterOrEqual(t, p50, prev, "p50 must not drop from one level to the next")
		}
		prev = p50
	}
}

func TestForecaster_CloserZonePredictsHigher(t *testing.T) {
	f := trainedForecaster(t)

	sf, err := f.Predict(map[string]any{"Level": "E4", "Location": "San Francisco"})
	require.NoError(t, err)
	austin, err := f.Predict(map[string]any{"Level": "E4", "Location": "Austin"})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sf["BaseSalary"]["p50"], austin["BaseSalary"]["p50"])
}

func TestForecaster_QuantileOrdering(t *testing.T) {
	f := trainedForecaster(t)

	var low, high float64
	for _, level := range []string{"E3", "E4", "E5"} {
		for _, location := range []string{"San Francisco", "Seattle", "Austin", "London"} {
			preds, err := f.Predict(map[string]any{"Level": level, "Location": location})
			require.NoError(t, err)
			low += preds["BaseSalary"]["p25"]
			high += preds["BaseSalary"]["p75"]
		}
	}
	assert.Less(t, low, high, "p25 predictions should sit below p75 overall")
}

func TestForecaster_EncodeRow(t *testing.T) {
	f, err := New(testSpec(), nil)
	require.NoError(t, err)

	row, err := f.EncodeRow(map[string]any{"Level": "E5", "Location": "Seattle"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, row)

	// unknown category and unknown location are lenient at encoding time
	row, err = f.EncodeRow(map[string]any{"Level": "E99", "Location": "Atlantis"})
	require.NoError(t, err)
	assert.Equal(t, []float64{encode.UnknownRank, 4}, row)
}

func TestForecaster_ProximityZone(t *testing.T) {
	f, err := New(testSpec(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, f.ProximityZone("San Francisco"))
	assert.Equal(t, 2, f.ProximityZone("Seattle"))
	assert.Equal(t, 4, f.ProximityZone(nil))
}

func TestForecaster_MissingTargetColumn(t *testing.T) {
	spec := testSpec()
	spec.Model.Targets = []string{"Bonus"}
	f, err := New(spec, nil)
	require.NoError(t, err)

	_, err = f.Train(context.Background(), trainingTable(t, 80), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	assert.Empty(t, f.Bank(), "failed training must not leave a partial bank")
}

func TestForecaster_CancelledContext(t *testing.T) {
	f, err := New(testSpec(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Train(ctx, trainingTable(t, 80), nil)
	require.Error(t, err)
	assert.Empty(t, f.Bank())
}

func TestForecaster_OutlierRemoval(t *testing.T) {
	spec := testSpec()
	spec.Model.RemoveOutliers = true
	f, err := New(spec, nil)
	require.NoError(t, err)

	result, err := f.Train(context.Background(), trainingTable(t, 200), nil)
	require.NoError(t, err)
	for key, report := range result.Models {
		assert.LessOrEqual(t, report.Rows, 200, key)
	}
}

func TestForecaster_PredictUntrained(t *testing.T) {
	f, err := New(testSpec(), nil)
	require.NoError(t, err)

	_, err = f.Predict(map[string]any{"Level": "E3", "Location": "Seattle"})
	assert.Error(t, err)
}

func TestResolveFeatures_UnboundEncodedFeature(t *testing.T) {
	spec := testSpec()
	spec.Model.Features = append(spec.Model.Features, config.Feature{Name: "Ghost_Enc"})

	_, err := New(spec, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestForecaster_NormalizedDateFeature(t *testing.T) {
	spec := testSpec()
	spec.Encodings.NormalizedDate = true
	spec.Model.Features = append(spec.Model.Features,
		config.Feature{Name: "Date_Norm", MonotoneConstraint: 0})

	f, err := New(spec, nil)
	require.NoError(t, err)

	_, err = f.Train(context.Background(), trainingTable(t, 150), nil)
	require.NoError(t, err)

	min, max := f.NormalizerBounds()
	assert.True(t, min.Before(max))
}
