package features

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	apperrors "disease-predictor/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertValue_CategoricalRoundTrip(t *testing.T) {
	table := DefaultTable()
	conv := NewConverter(table)

	for _, name := range table.FeatureNames() {
		if !table.IsCategorical(name) {
			continue
		}
		d, _ := table.Descriptor(name)
		for label, code := range d.Labels {
			got, err := conv.ConvertValue(name, label)
			require.NoError(t, err, "%s=%s", name, label)
			assert.Equal(t, float64(code), got, "%s=%s", name, label)
		}
	}
}

func TestConvertValue(t *testing.T) {
	conv := NewConverter(nil)

	tests := []struct {
		name    string
		feature string
		raw     interface{}
		want    float64
		wantErr string
	}{
		{name: "float", feature: "Age", raw: 72.5, want: 72.5},
		{name: "int", feature: "Age", raw: 70, want: 70},
		{name: "json number", feature: "BMI", raw: json.Number("22.75"), want: 22.75},
		{name: "numeric string", feature: "BMI", raw: "22.5", want: 22.5},
		{name: "padded string", feature: "MMSE", raw: "  18 ", want: 18},
		{name: "negative", feature: "ADL", raw: "-3", want: -3},
		{name: "unknown feature parsed as number", feature: "CholesterolLDL", raw: "120", want: 120},
		{name: "category code", feature: "Ethnicity", raw: "Asian", want: 2},
		{name: "apostrophe label", feature: "EducationLevel", raw: "Bachelor's", want: 2},
		{
			name: "unknown label", feature: "Smoking", raw: "Maybe",
			wantErr: "Invalid value 'Maybe' for feature 'Smoking'. Valid values are: ['No', 'Yes']",
		},
		{
			name: "case sensitive", feature: "Gender", raw: "male",
			wantErr: "Invalid value 'male' for feature 'Gender'. Valid values are: ['Male', 'Female']",
		},
		{
			name: "numeric code for categorical", feature: "Smoking", raw: 1.0,
			wantErr: "Invalid value '1' for feature 'Smoking'",
		},
		{name: "not a number", feature: "Age", raw: "abc", wantErr: "Expected numerical value for 'Age', got 'abc'"},
		{name: "empty string", feature: "Age", raw: "", wantErr: "Expected numerical value for 'Age', got ''"},
		{name: "nan string", feature: "Age", raw: "NaN", wantErr: "Expected numerical value for 'Age', got 'NaN'"},
		{name: "inf float", feature: "Age", raw: math.Inf(1), wantErr: "Expected numerical value for 'Age'"},
		{name: "hex float", feature: "Age", raw: "0x1p3", wantErr: "Expected numerical value for 'Age', got '0x1p3'"},
		{name: "padded hex", feature: "Age", raw: " 0X10 ", wantErr: "Expected numerical value for 'Age'"},
		{name: "signed hex", feature: "Age", raw: "-0x1p3", wantErr: "Expected numerical value for 'Age', got '-0x1p3'"},
		{name: "plus signed hex", feature: "CholesterolLDL", raw: "+0x78", wantErr: "Expected numerical value for 'CholesterolLDL'"},
		{name: "leading zero decimal", feature: "Age", raw: "070", want: 70},
		{name: "bool", feature: "Age", raw: true, wantErr: "Expected numerical value for 'Age', got 'true'"},
		{name: "null", feature: "Age", raw: nil, wantErr: "Expected numerical value for 'Age', got 'null'"},
		{name: "array", feature: "Age", raw: []interface{}{1.0}, wantErr: "Expected numerical value for 'Age', got '[1]'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.ConvertValue(tt.feature, tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.feature, verr.Feature)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertRecord(t *testing.T) {
	conv := NewConverter(nil)

	got, err := conv.ConvertRecord(map[string]interface{}{
		"Age":     "75",
		"Gender":  "Female",
		"Smoking": "No",
		"Extra":   3.0,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Age": 75, "Gender": 1, "Smoking": 0, "Extra": 3}, got)
}

func TestConvertRecord_FailFastIsDeterministic(t *testing.T) {
	conv := NewConverter(nil)
	record := map[string]interface{}{
		"Smoking":   "Maybe",
		"Age":       "old",
		"Diabetes":  "Yes",
		"Ethnicity": "Martian",
	}

	for i := 0; i < 20; i++ {
		_, err := conv.ConvertRecord(record)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "Age", verr.Feature)
	}
}

func TestConvertRecord_Empty(t *testing.T) {
	got, err := NewConverter(nil).ConvertRecord(map[string]interface{}{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidationError_ToStandardError(t *testing.T) {
	_, err := NewConverter(nil).ConvertValue("Smoking", "Maybe")

	std := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, std.Code)
	assert.Equal(t, err.Error(), std.Message)
	assert.Equal(t, "Smoking", std.Metadata["feature"])
	assert.Equal(t, []string{"No", "Yes"}, std.Metadata["valid_values"])
}
