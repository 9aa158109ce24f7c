package validation

import (
	"encoding/json"
	"testing"

	apperrors "disease-predictor/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestBodyValidator(t *testing.T) {
	predict := MustBodyValidator("predict", PredictRequestSchema)
	batch := MustBodyValidator("batch", BatchRequestSchema)
	job := MustBodyValidator("job", AssessmentJobSchema)

	tests := []struct {
		name      string
		validator *BodyValidator
		body      string
		valid     bool
	}{
		{"predict object", predict, `{"Age": 70, "Smoking": "No"}`, true},
		{"predict empty object", predict, `{}`, true},
		{"predict booleans pass shape check", predict, `{"Age": true}`, true},
		{"predict array", predict, `[1, 2]`, false},
		{"predict string", predict, `"Age"`, false},
		{"batch columns", batch, `{"columns": {"Age": [70, 71]}}`, true},
		{"batch missing columns", batch, `{"Age": [70]}`, false},
		{"batch empty columns", batch, `{"columns": {}}`, false},
		{"batch scalar column", batch, `{"columns": {"Age": 70}}`, false},
		{"job", job, `{"patientId": "p-1", "features": {"Age": 70}}`, true},
		{"job without patient", job, `{"features": {}}`, true},
		{"job numeric patient", job, `{"patientId": 7, "features": {}}`, false},
		{"job without features", job, `{"patientId": "p-1"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator.Validate(decode(t, tt.body))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidRequestBody, apperrors.Normalize(err).Code)
		})
	}
}

func TestNewBodyValidator_BadSchema(t *testing.T) {
	_, err := NewBodyValidator("broken", `{"type": 12}`)
	assert.Error(t, err)

	assert.Panics(t, func() { MustBodyValidator("broken", `{`) })
}
