package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "disease-predictor/internal/common/errors"
	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/features"
	"disease-predictor/internal/model"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Predict(X [][]float64) ([]int, error) {
	args := m.Called(X)
	labels, _ := args.Get(0).([]int)
	return labels, args.Error(1)
}

func (m *mockClassifier) PredictProba(X [][]float64) ([][]float64, error) {
	args := m.Called(X)
	proba, _ := args.Get(0).([][]float64)
	return proba, args.Error(1)
}

type mockScaler struct {
	mock.Mock
}

func (m *mockScaler) Transform(X [][]float64) ([][]float64, error) {
	args := m.Called(X)
	out, _ := args.Get(0).([][]float64)
	return out, args.Error(1)
}

// Schema: Age, Smoking, MMSE. Age and MMSE are scaled.
func testInfo() *model.ColumnInfo {
	return &model.ColumnInfo{
		NumericalColumns:   []string{"MMSE", "Age"},
		CategoricalColumns: []string{"Smoking"},
		FeatureNames:       []string{"Age", "Smoking", "MMSE"},
	}
}

func newTestOrchestrator(t *testing.T, clf model.Classifier, scaler model.Scaler, opts ...Option) *Orchestrator {
	t.Helper()
	bundle, err := model.NewBundle(clf, scaler, testInfo())
	require.NoError(t, err)
	return New(features.NewConverter(nil), bundle, logger.NewTestLogger(t), opts...)
}

func validRecord() map[string]interface{} {
	return map[string]interface{}{"Age": 72, "Smoking": "Yes", "MMSE": "21.5"}
}

func TestPredict_ScalesSubsetInPlace(t *testing.T) {
	clf := new(mockClassifier)
	scaler := new(mockScaler)

	// Scaler sees [MMSE, Age] in column-info order.
	scaler.On("Transform", [][]float64{{21.5, 72}}).Return([][]float64{{-1, 2}}, nil)
	// Classifier sees schema order with scaled values written back.
	clf.On("Predict", [][]float64{{2, 1, -1}}).Return([]int{1}, nil)
	clf.On("PredictProba", [][]float64{{2, 1, -1}}).Return([][]float64{{0.2, 0.8}}, nil)

	o := newTestOrchestrator(t, clf, scaler)
	res, err := o.Predict(context.Background(), validRecord())
	require.NoError(t, err)

	assert.Equal(t, 0.8, res.Probability)
	assert.Equal(t, 1, res.Prediction)
	assert.Equal(t, RiskHigh, res.RiskLevel)
	assert.Equal(t, RiskHigh.Recommendations(), res.Recommendations)

	clf.AssertExpectations(t)
	scaler.AssertExpectations(t)
}

func TestPredict_TierBoundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want RiskLevel
	}{
		{0.70, RiskHigh},
		{0.6999, RiskModerate},
		{0.30, RiskModerate},
		{0.2999, RiskLow},
	}

	for _, tt := range tests {
		clf := new(mockClassifier)
		scaler := new(mockScaler)
		scaler.On("Transform", mock.Anything).Return([][]float64{{0, 0}}, nil)
		clf.On("Predict", mock.Anything).Return([]int{0}, nil)
		clf.On("PredictProba", mock.Anything).Return([][]float64{{1 - tt.p, tt.p}}, nil)

		res, err := newTestOrchestrator(t, clf, scaler).Predict(context.Background(), validRecord())
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.RiskLevel, "p=%v", tt.p)
		assert.Equal(t, tt.p, res.Probability)
	}
}

func TestPredict_ClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		record   map[string]interface{}
		wantCode apperrors.ErrorCode
		wantMsg  string
	}{
		{
			name:     "invalid label",
			record:   map[string]interface{}{"Age": 72, "Smoking": "Maybe", "MMSE": 21},
			wantCode: apperrors.ErrCodeValidationFailed,
			wantMsg:  "Invalid value 'Maybe' for feature 'Smoking'. Valid values are: ['No', 'Yes']",
		},
		{
			name:     "bad number",
			record:   map[string]interface{}{"Age": "old", "Smoking": "No", "MMSE": 21},
			wantCode: apperrors.ErrCodeValidationFailed,
			wantMsg:  "Expected numerical value for 'Age', got 'old'",
		},
		{
			name:     "missing features",
			record:   map[string]interface{}{"Smoking": "No"},
			wantCode: apperrors.ErrCodeMissingFeatures,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := new(mockClassifier)
			scaler := new(mockScaler)
			o := newTestOrchestrator(t, clf, scaler)

			_, err := o.Predict(context.Background(), tt.record)
			require.Error(t, err)

			std := apperrors.Normalize(err)
			assert.Equal(t, tt.wantCode, std.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, std.Message)
			}
			clf.AssertNotCalled(t, "Predict", mock.Anything)
			scaler.AssertNotCalled(t, "Transform", mock.Anything)
		})
	}
}

func TestPredict_MissingListsEverySchemaName(t *testing.T) {
	o := newTestOrchestrator(t, new(mockClassifier), new(mockScaler))

	_, err := o.Predict(context.Background(), map[string]interface{}{"Unrelated": 1})
	var missing *features.MissingFeaturesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"Age", "Smoking", "MMSE"}, missing.Missing)
}

func TestPredict_InferenceFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(clf *mockClassifier, scaler *mockScaler)
	}{
		{
			name: "scaler error",
			setup: func(clf *mockClassifier, scaler *mockScaler) {
				scaler.On("Transform", mock.Anything).Return(nil, errors.New("width mismatch"))
			},
		},
		{
			name: "classifier error",
			setup: func(clf *mockClassifier, scaler *mockScaler) {
				scaler.On("Transform", mock.Anything).Return([][]float64{{0, 0}}, nil)
				clf.On("Predict", mock.Anything).Return(nil, errors.New("corrupt tree"))
			},
		},
		{
			name: "single column probabilities",
			setup: func(clf *mockClassifier, scaler *mockScaler) {
				scaler.On("Transform", mock.Anything).Return([][]float64{{0, 0}}, nil)
				clf.On("Predict", mock.Anything).Return([]int{0}, nil)
				clf.On("PredictProba", mock.Anything).Return([][]float64{{1}}, nil)
			},
		},
		{
			name: "classifier panics",
			setup: func(clf *mockClassifier, scaler *mockScaler) {
				scaler.On("Transform", mock.Anything).Return([][]float64{{0, 0}}, nil)
				clf.On("Predict", mock.Anything).Run(func(mock.Arguments) { panic("index out of range") })
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := new(mockClassifier)
			scaler := new(mockScaler)
			tt.setup(clf, scaler)

			res, err := newTestOrchestrator(t, clf, scaler).Predict(context.Background(), validRecord())
			require.Error(t, err)
			assert.Nil(t, res)

			std := apperrors.Normalize(err)
			assert.Equal(t, apperrors.ErrCodeInferenceFailed, std.Code)
			assert.Equal(t, "Internal server error", std.PublicMessage())
		})
	}
}

func TestPredictBatch(t *testing.T) {
	clf := new(mockClassifier)
	scaler := new(mockScaler)

	scaler.On("Transform", [][]float64{{20, 70}, {28, 81}}).Return([][]float64{{-1, -1}, {1, 1}}, nil)
	X := [][]float64{{-1, 0, -1}, {1, 1, 1}}
	clf.On("Predict", X).Return([]int{0, 1}, nil)
	clf.On("PredictProba", X).Return([][]float64{{0.9, 0.1}, {0.5, 0.5}}, nil)

	o := newTestOrchestrator(t, clf, scaler)
	results, err := o.PredictBatch(context.Background(), map[string][]interface{}{
		"Age":     {70, "81"},
		"Smoking": {"No", "Yes"},
		"MMSE":    {20, 28},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, RiskLow, results[0].RiskLevel)
	assert.Equal(t, RiskModerate, results[1].RiskLevel)
	assert.Equal(t, 1, results[1].Prediction)
}

func TestPredictBatch_Errors(t *testing.T) {
	o := newTestOrchestrator(t, new(mockClassifier), new(mockScaler))

	_, err := o.PredictBatch(context.Background(), map[string][]interface{}{
		"Age":     {70, 81, 90},
		"Smoking": {"Maybe", "No", "Sometimes"},
		"MMSE":    {20, 28, 30},
	})
	require.Error(t, err)
	assert.Equal(t, "Invalid values for 'Smoking': ['Maybe', 'Sometimes']. Valid values are: ['No', 'Yes']", err.Error())

	_, err = o.PredictBatch(context.Background(), map[string][]interface{}{
		"Age":  {70},
		"MMSE": {20},
	})
	assert.Equal(t, apperrors.ErrCodeMissingFeatures, apperrors.Normalize(err).Code)

}

func TestPredictBatch_ZeroRows(t *testing.T) {
	tests := []struct {
		name        string
		columns     map[string][]interface{}
		wantMissing []string
	}{
		{
			name:    "complete columns",
			columns: map[string][]interface{}{"Age": {}, "Smoking": {}, "MMSE": {}},
		},
		{
			name:        "incomplete columns",
			columns:     map[string][]interface{}{"Age": {}},
			wantMissing: []string{"Smoking", "MMSE"},
		},
		{
			name:        "no columns",
			columns:     map[string][]interface{}{},
			wantMissing: []string{"Age", "Smoking", "MMSE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := new(mockClassifier)
			o := newTestOrchestrator(t, clf, new(mockScaler))

			results, err := o.PredictBatch(context.Background(), tt.columns)
			clf.AssertNotCalled(t, "Predict", mock.Anything)
			if tt.wantMissing == nil {
				require.NoError(t, err)
				assert.NotNil(t, results)
				assert.Empty(t, results)
				return
			}

			require.Error(t, err)
			var missing *features.MissingFeaturesError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.wantMissing, missing.Missing)
		})
	}
}

func TestPredict_EmitsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	clf := new(mockClassifier)
	scaler := new(mockScaler)
	scaler.On("Transform", mock.Anything).Return([][]float64{{0, 0}}, nil)
	clf.On("Predict", mock.Anything).Return([]int{0}, nil)
	clf.On("PredictProba", mock.Anything).Return([][]float64{{0.6, 0.4}}, nil)

	o := newTestOrchestrator(t, clf, scaler, WithTracer(tp.Tracer("test")))
	_, err := o.Predict(context.Background(), validRecord())
	require.NoError(t, err)

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"inference.convert", "inference.assemble", "inference.score", "inference.Predict"}, names)
}

func TestPredict_WithForest(t *testing.T) {
	forest := &model.Forest{
		Format:    model.ForestFormat,
		Features:  []string{"Age", "MMSE"},
		Classes:   []int{0, 1},
		NFeatures: 2,
		Trees: []model.Tree{{Nodes: []model.Node{
			{Feature: 1, Threshold: 0, Left: 1, Right: 2},
			{Left: -1, Right: -1, Value: []float64{0.1, 0.9}},
			{Left: -1, Right: -1, Value: []float64{0.8, 0.2}},
		}}},
	}
	scaler := &model.StandardScaler{Columns: []string{"Age", "MMSE"}, Mean: []float64{75, 24}, Scale: []float64{5, 4}}
	info := &model.ColumnInfo{NumericalColumns: []string{"Age", "MMSE"}}

	bundle, err := model.NewBundle(forest, scaler, info)
	require.NoError(t, err)
	o := New(nil, bundle, nil)

	// MMSE 18 scales to -1.5, goes left.
	res, err := o.Predict(context.Background(), map[string]interface{}{"Age": 80, "MMSE": 18})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, res.Probability, 1e-12)
	assert.Equal(t, RiskHigh, res.RiskLevel)

	res, err = o.Predict(context.Background(), map[string]interface{}{"Age": 80, "MMSE": 29})
	require.NoError(t, err)
	assert.Equal(t, RiskLow, res.RiskLevel)
	assert.Equal(t, 0, res.Prediction)
}
