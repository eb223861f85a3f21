package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paycast/internal/config"
	"paycast/internal/dataset"
	"paycast/internal/forecast"
	"paycast/internal/inference"
	"paycast/internal/registry"
	"paycast/internal/training"
	api "paycast/pkg/contracts/api/v1"
)

type testServer struct {
	server  *httptest.Server
	modelID string
	dataDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	reg, err := registry.New(t.TempDir(), nil)
	require.NoError(t, err)

	f := trainForecaster(t)
	manifest, err := reg.Save(f, "api-test")
	require.NoError(t, err)

	infCfg := config.InferenceConfig{
		MaxConcurrency:     8,
		DefaultConcurrency: 4,
		MaxBatchSize:       100,
		DefaultTimeout:     10 * time.Second,
	}

	svc := inference.NewService(reg, infCfg, nil, nil)
	manager := training.NewManager(reg, nil, nil, time.Minute)

	handler := NewRouter(RouterConfig{
		Inference: svc,
		Registry:  reg,
		Training:  manager,
		Version:   "test",
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testServer{server: server, modelID: manifest.ID, dataDir: t.TempDir()}
}

func apiTestSpec() *config.ModelSpec {
	spec := &config.ModelSpec{
		Mappings: map[string]map[string]int{
			"levels": {"E3": 0, "E4": 1, "E5": 2},
		},
		Location: config.LocationSettings{
			ReferenceCity: "San Francisco",
			Cities: map[string]config.Coordinates{
				"San Francisco": {Lat: 37.7749, Lon: -122.4194},
				"Seattle":       {Lat: 47.6062, Lon: -122.3321},
			},
			ZoneThresholdsKm: []float64{100, 1500, 3000},
		},
		Model: config.ModelSettings{
			Targets:   []string{"BaseSalary"},
			Quantiles: []float64{0.5},
			Features: []config.Feature{
				{Name: "Level_Enc", MonotoneConstraint: 1},
				{Name: "Location_Zone", MonotoneConstraint: -1},
			},
			DateColumn: "Date",
		},
		Encodings: config.EncodingSettings{
			Ranked:    map[string]string{"Level": "levels"},
			Proximity: []string{"Location"},
		},
	}
	spec.ApplyDefaults()
	spec.Model.Hyperparameters.CV.NumBoostRound = 8
	return spec
}

func trainForecaster(t *testing.T) *forecast.Forecaster {
	t.Helper()

	rng := rand.New(rand.NewSource(13))
	levels := []string{"E3", "E4", "E5"}
	locations := []string{"San Francisco", "Seattle"}
	rows := make([][]any, 100)
	for i := range rows {
		level := rng.Intn(3)
		rows[i] = []any{
			levels[level],
			locations[rng.Intn(2)],
			fmt.Sprintf("%.0f", 90000+25000*float64(level)+rng.NormFloat64()*4000),
			"2024-05-01",
		}
	}
	tbl, err := dataset.NewTable([]string{"Level", "Location", "BaseSalary", "Date"}, rows)
	require.NoError(t, err)

	f, err := forecast.New(apiTestSpec(), nil)
	require.NoError(t, err)
	_, err = f.Train(context.Background(), tbl, nil)
	require.NoError(t, err)
	return f
}

func (ts *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestRouter_ListModels(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/api/models")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var models []api.ModelSummary
	decodeBody(t, resp, &models)
	require.Len(t, models, 1)
	assert.Equal(t, ts.modelID, models[0].ID)
	assert.Equal(t, []string{"BaseSalary"}, models[0].Targets)
}

func TestRouter_Schema(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/api/models/" + ts.modelID + "/schema")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var schema forecast.Schema
	decodeBody(t, resp, &schema)
	assert.Equal(t, []string{"E3", "E4", "E5"}, schema.RankedFeatures["Level"])
	assert.Equal(t, []string{"Location"}, schema.ProximityFeatures)
}

func TestRouter_Predict(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/models/"+ts.modelID+"/predict", api.PredictRequest{
		Features: map[string]any{"Level": "E4", "Location": "Seattle"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.PredictResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, ts.modelID, body.ModelID)
	assert.Contains(t, body.Predictions["BaseSalary"], "p50")
	require.NotNil(t, body.Metadata.ProximityZone)
	assert.Equal(t, 2, *body.Metadata.ProximityZone)
}

func TestRouter_PredictValidationError(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/models/"+ts.modelID+"/predict", api.PredictRequest{
		Features: map[string]any{"Level": "E99"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, false, body["success"])

	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "INVALID_INPUT", errObj["code"])
}

func TestRouter_PredictModelNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/models/nope/predict", api.PredictRequest{
		Features: map[string]any{"Level": "E4", "Location": "Seattle"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_PredictBatch(t *testing.T) {
	ts := newTestServer(t)

	good := map[string]any{"Level": "E4", "Location": "Seattle"}
	bad := map[string]any{"Location": "Seattle"} // Level missing

	resp := ts.post(t, "/api/models/"+ts.modelID+"/predict/batch", api.BatchPredictRequest{
		Items:       []map[string]any{good, bad, good},
		Concurrency: 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.BatchPredictResponse
	decodeBody(t, resp, &body)
	require.Len(t, body.Items, 3, "response must enumerate every input")

	assert.Equal(t, "success", body.Items[0].Status)
	assert.Equal(t, "success", body.Items[2].Status)

	assert.Equal(t, "validation_error", body.Items[1].Status)
	require.NotNil(t, body.Items[1].Error)
	assert.Equal(t, "INVALID_INPUT", body.Items[1].Error.Code)
	assert.NotEmpty(t, body.Items[1].Error.Messages)

	for i, item := range body.Items {
		assert.Equal(t, i, item.Index)
	}
}

func TestRouter_TrainingJobFlow(t *testing.T) {
	ts := newTestServer(t)

	// write a dataset file the server can read
	rng := rand.New(rand.NewSource(21))
	content := "Level,Location,BaseSalary,Date\n"
	levels := []string{"E3", "E4", "E5"}
	for i := 0; i < 80; i++ {
		level := rng.Intn(3)
		content += fmt.Sprintf("%s,Seattle,%.0f,2024-04-01\n",
			levels[level], 90000+25000*float64(level)+rng.NormFloat64()*4000)
	}
	datasetPath := filepath.Join(ts.dataDir, "train.csv")
	require.NoError(t, os.WriteFile(datasetPath, []byte(content), 0o644))

	specJSON, err := json.Marshal(apiTestSpec())
	require.NoError(t, err)
	var specMap map[string]any
	require.NoError(t, json.Unmarshal(specJSON, &specMap))

	resp := ts.post(t, "/api/train", api.TrainRequest{
		Name:        "from-api",
		DatasetPath: datasetPath,
		Spec:        specMap,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack api.TrainResponse
	decodeBody(t, resp, &ack)
	require.NotEmpty(t, ack.JobID)

	// poll until the job finishes
	deadline := time.Now().Add(30 * time.Second)
	var job training.Job
	for time.Now().Before(deadline) {
		r, err := http.Get(ts.server.URL + "/api/train/" + ack.JobID)
		require.NoError(t, err)
		decodeBody(t, r, &job)
		if job.Status == training.StatusCompleted || job.Status == training.StatusFailed {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	require.Equal(t, training.StatusCompleted, job.Status, "error: %s", job.Error)
	assert.NotEmpty(t, job.ModelID)
}

func TestRouter_TrainMissingSpec(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/train", api.TrainRequest{
		Name:        "no-spec",
		DatasetPath: "/tmp/nope.csv",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_UnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/api/unknown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
