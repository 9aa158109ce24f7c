package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disease-predictor/internal/artifact"
	"disease-predictor/internal/common/config"
	"disease-predictor/internal/model"
	"disease-predictor/internal/training"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func patientsCSV(n int) string {
	rnd := rand.New(rand.NewSource(3))
	var b strings.Builder
	b.WriteString("PatientID,Age,Gender,MMSE,Smoking,Diagnosis\n")
	for i := 0; i < n; i++ {
		mmse := rnd.Float64() * 30
		diagnosis := 0
		if mmse < 18 {
			diagnosis = 1
		}
		fmt.Fprintf(&b, "%d,%d,%d,%.2f,%d,%d\n", 6000+i, 60+rnd.Intn(31), rnd.Intn(2), mmse, rnd.Intn(2), diagnosis)
	}
	return b.String()
}

func TestOpenTarget(t *testing.T) {
	mr := miniredis.RunT(t)
	configured := t.TempDir()
	override := t.TempDir()

	tests := []struct {
		name        string
		store       config.StoreConfig
		out         string
		wantType    interface{}
		wantBackend string
		wantDir     string
	}{
		{
			name:        "configured file store",
			store:       config.StoreConfig{Backend: "file", File: config.FileConfig{Dir: configured}},
			wantType:    &artifact.FileStore{},
			wantBackend: "file",
			wantDir:     configured,
		},
		{
			name:        "configured redis store",
			store:       config.StoreConfig{Backend: "redis", Redis: config.RedisConfig{Address: mr.Addr()}},
			wantType:    &artifact.RedisStore{},
			wantBackend: "redis",
		},
		{
			name:        "out overrides the configured store",
			store:       config.StoreConfig{Backend: "redis", Redis: config.RedisConfig{Address: mr.Addr()}},
			out:         override,
			wantType:    &artifact.FileStore{},
			wantBackend: "file",
			wantDir:     override,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := openTarget(context.Background(), &config.Config{Store: tt.store}, tt.out)
			require.NoError(t, err)
			defer target.store.Close()

			assert.IsType(t, tt.wantType, target.store)
			assert.Equal(t, tt.wantBackend, target.backend)
			assert.Equal(t, tt.wantDir, target.dir)
		})
	}
}

func TestTrain_PublishesToConfiguredStore(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	csvPath := writeFile(t, dir, "patients.csv", patientsCSV(160))
	cfgPath := writeFile(t, dir, "config.yaml", fmt.Sprintf(`
store:
  backend: redis
  redis:
    address: %s
    key_prefix: "models:"
model:
  classifier_artifact: forest-2026.json
  scaler_artifact: scaler-2026.json
  column_info_artifact: columns-2026.json
`, mr.Addr()))
	reportPath := filepath.Join(dir, "report.yaml")

	err := newApp().Run(context.Background(), []string{
		"train-model", "train",
		"--config", cfgPath,
		"--data", csvPath,
		"--report", reportPath,
		"--trees", "5",
		"--depth", "4",
		"--folds", "2",
	})
	require.NoError(t, err)

	for _, key := range []string{"models:forest-2026.json", "models:scaler-2026.json", "models:columns-2026.json"} {
		assert.True(t, mr.Exists(key), key)
	}

	cfg, err := config.LoadFromFile(cfgPath)
	require.NoError(t, err)
	store, err := artifact.Open(context.Background(), cfg.Store)
	require.NoError(t, err)
	defer store.Close()

	bundle, err := model.LoadArtifacts(context.Background(), store, artifactNames(cfg))
	require.NoError(t, err)
	assert.Equal(t, []string{"Age", "Gender", "MMSE", "Smoking"}, bundle.Schema.Names())
	assert.Equal(t, []string{"Age", "MMSE"}, bundle.ScalingColumns)

	report, err := training.ReadReport(reportPath)
	require.NoError(t, err)
	assert.Equal(t, 160, report.Rows)
}
