// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disease-predictor/internal/api"
	"disease-predictor/internal/artifact"
	"disease-predictor/internal/common/config"
	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/features"
	"disease-predictor/internal/inference"
	"disease-predictor/internal/model"
	"disease-predictor/internal/training"
)

// patientsCSV builds an export where the diagnosis follows MMSE alone.
func patientsCSV(n int) string {
	rnd := rand.New(rand.NewSource(7))
	var b strings.Builder
	b.WriteString("PatientID,Age,Gender,MMSE,Smoking,CholesterolLDL,DoctorInCharge,Diagnosis\n")
	for i := 0; i < n; i++ {
		mmse := rnd.Float64() * 30
		diagnosis := 0
		if mmse < 18 {
			diagnosis = 1
		}
		fmt.Fprintf(&b, "%d,%d,%d,%.2f,%d,%.1f,XXXConfid,%d\n",
			5000+i, 60+rnd.Intn(31), rnd.Intn(2), mmse, rnd.Intn(2), 50+rnd.Float64()*150, diagnosis)
	}
	return b.String()
}

// deploy trains on a synthetic export, writes the artifacts to a file store the way the
// trainer does and loads them back the way the server does.
func deploy(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "patients.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(patientsCSV(240)), 0o644))

	ds, err := training.LoadCSV(csvPath)
	require.NoError(t, err)

	opts := training.DefaultOptions()
	opts.Forest.NTrees = 25
	opts.Forest.Tree.MaxDepth = 6
	opts.Forest.Workers = 2
	res, err := training.Train(ctx, ds, opts, log)
	require.NoError(t, err)

	modelDir := filepath.Join(dir, "models")
	names := model.ArtifactNames{
		Classifier: config.DefaultClassifierArtifact,
		Scaler:     config.DefaultScalerArtifact,
		ColumnInfo: config.DefaultColumnInfoArtifact,
	}
	require.NoError(t, res.Save(ctx, artifact.NewFileStore(modelDir), names))

	store, err := artifact.Open(ctx, config.StoreConfig{Backend: "file", File: config.FileConfig{Dir: modelDir}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bundle, err := model.LoadArtifacts(ctx, store, names)
	require.NoError(t, err)
	require.Equal(t, []string{"Age", "Gender", "MMSE", "Smoking"}, bundle.Schema.Names())
	require.Equal(t, []string{"Age", "MMSE"}, bundle.ScalingColumns)

	orch := inference.New(features.NewConverter(nil), bundle, log)
	return api.NewRouter(api.NewHandler(orch, log, 100), api.RouterOptions{Logger: log})
}

func post(t *testing.T, r http.Handler, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func get(t *testing.T, r http.Handler, path string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestPredict_TrainedModel(t *testing.T) {
	r := deploy(t)

	code, impaired := post(t, r, "/predict", map[string]interface{}{
		"Age": 82, "Gender": "Female", "MMSE": 3.5, "Smoking": "No",
	})
	require.Equal(t, http.StatusOK, code, impaired)
	assert.Equal(t, float64(1), impaired["prediction"])
	assert.Equal(t, "HIGH", impaired["riskLevel"])
	assert.NotEmpty(t, impaired["recommendations"])

	code, healthy := post(t, r, "/predict", map[string]interface{}{
		"Age": "68", "Gender": "Male", "MMSE": "29.5", "Smoking": "Yes",
	})
	require.Equal(t, http.StatusOK, code, healthy)
	assert.Equal(t, float64(0), healthy["prediction"])
	assert.Less(t, healthy["probability"].(float64), impaired["probability"].(float64))
}

func TestPredict_ExtraFields(t *testing.T) {
	r := deploy(t)

	code, body := post(t, r, "/predict", map[string]interface{}{
		"Age": 70, "Gender": "Male", "MMSE": 25, "Smoking": "No",
		"HeartRate": 72,
	})
	assert.Equal(t, http.StatusOK, code, body)

	code, body = post(t, r, "/predict", map[string]interface{}{
		"Age": 70, "Gender": "Male", "MMSE": 25, "Smoking": "No",
		"FavouriteColour": "blue",
	})
	assert.Equal(t, http.StatusBadRequest, code, body)
}

func TestPredict_ClientErrors(t *testing.T) {
	r := deploy(t)

	tests := []struct {
		name   string
		record map[string]interface{}
	}{
		{"unknown label", map[string]interface{}{"Age": 70, "Gender": "Male", "MMSE": 25, "Smoking": "Maybe"}},
		{"label case matters", map[string]interface{}{"Age": 70, "Gender": "male", "MMSE": 25, "Smoking": "No"}},
		{"numeric text", map[string]interface{}{"Age": "seventy", "Gender": "Male", "MMSE": 25, "Smoking": "No"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := post(t, r, "/predict", tt.record)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "missing_features")
		})
	}
}

func TestPredict_InvalidGenderNamesValidLabels(t *testing.T) {
	r := deploy(t)

	code, body := post(t, r, "/predict", map[string]interface{}{
		"Age": "72", "Gender": "Unknown", "MMSE": 25, "Smoking": "No",
	})
	require.Equal(t, http.StatusBadRequest, code)
	msg := body["error"].(string)
	assert.Contains(t, msg, "Gender")
	assert.Contains(t, msg, "Unknown")
	assert.Less(t, strings.Index(msg, "Male"), strings.Index(msg, "Female"))
}

func TestPredict_MissingFeatures(t *testing.T) {
	r := deploy(t)

	tests := []struct {
		name    string
		record  map[string]interface{}
		missing []string
	}{
		{"empty record", map[string]interface{}{}, []string{"Age", "Gender", "MMSE", "Smoking"}},
		{"one missing", map[string]interface{}{"Age": 70, "Gender": "Male", "Smoking": "No"}, []string{"MMSE"}},
		{"two missing", map[string]interface{}{"Age": 70, "MMSE": 25}, []string{"Gender", "Smoking"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := post(t, r, "/predict", tt.record)
			require.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "Missing required features", body["error"])
			assert.Equal(t, "Please provide values for all required features", body["message"])

			var got []string
			for _, v := range body["missing_features"].([]interface{}) {
				got = append(got, v.(string))
			}
			assert.ElementsMatch(t, tt.missing, got)
		})
	}
}

func TestPredictBatch_TrainedModel(t *testing.T) {
	r := deploy(t)

	code, body := post(t, r, "/predict/batch", map[string]interface{}{
		"columns": map[string]interface{}{
			"Age":     []interface{}{80, 66},
			"Gender":  []interface{}{"Female", "Male"},
			"MMSE":    []interface{}{2, 29},
			"Smoking": []interface{}{"No", "No"},
		},
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(2), body["count"])

	results := body["results"].([]interface{})
	require.Len(t, results, 2)
	assert.Equal(t, float64(1), results[0].(map[string]interface{})["prediction"])
	assert.Equal(t, float64(0), results[1].(map[string]interface{})["prediction"])
}

func TestFeaturesAndValidValues(t *testing.T) {
	r := deploy(t)

	code, body := get(t, r, "/features")
	require.Equal(t, http.StatusOK, code)

	var names []string
	for _, v := range body["features"].([]interface{}) {
		names = append(names, v.(string))
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.Len(t, names, len(features.NewConverter(nil).Table().FeatureNames()))
	assert.Contains(t, names, "MMSE")

	code, valid := get(t, r, "/valid_values")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"Male": float64(0), "Female": float64(1)}, valid["Gender"])
	assert.Equal(t, "0-30 score", valid["MMSE"])
}

func TestReady_ReportsLoadedModel(t *testing.T) {
	r := deploy(t)

	code, body := get(t, r, "/ready")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, float64(4), body["schemaSize"])
	assert.Equal(t, model.ForestFormat, body["modelFormat"])
}
