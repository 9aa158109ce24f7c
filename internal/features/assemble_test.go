package features

import (
	"errors"
	"math/rand"
	"testing"

	apperrors "disease-predictor/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSchema(t *testing.T, names ...string) *Schema {
	t.Helper()
	s, err := NewSchema(names)
	require.NoError(t, err)
	return s
}

func TestNewSchema(t *testing.T) {
	_, err := NewSchema(nil)
	assert.Error(t, err)

	_, err = NewSchema([]string{"Age", "BMI", "Age"})
	assert.ErrorContains(t, err, "more than once")

	_, err = NewSchema([]string{"Age", ""})
	assert.ErrorContains(t, err, "empty feature name")

	s := mustSchema(t, "Age", "BMI")
	assert.Equal(t, 2, s.Len())
	i, ok := s.Index("BMI")
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	names := s.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"Age", "BMI"}, s.Names())
}

func TestAssemble_OrdersBySchema(t *testing.T) {
	schema := mustSchema(t, "Age", "Gender", "BMI", "Smoking")

	vec, err := Assemble(map[string]float64{
		"Smoking": 1,
		"BMI":     24.5,
		"Age":     72,
		"Gender":  0,
		"Ignored": 99,
	}, schema)
	require.NoError(t, err)
	assert.Equal(t, []float64{72, 0, 24.5, 1}, vec)
}

func TestAssemble_OrderIndependent(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f"}
	schema := mustSchema(t, names...)
	record := map[string]float64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6}

	want, err := Assemble(record, schema)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := make(map[string]float64, len(record))
		perm := rng.Perm(len(names))
		for _, p := range perm {
			shuffled[names[p]] = record[names[p]]
		}
		got, err := Assemble(shuffled, schema)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAssemble_ZeroAndNegativeArePresent(t *testing.T) {
	schema := mustSchema(t, "a", "b")
	vec, err := Assemble(map[string]float64{"a": 0, "b": -1}, schema)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1}, vec)
}

func TestAssemble_ReportsExactMissingSet(t *testing.T) {
	names := []string{"a", "b", "c", "d"}
	schema := mustSchema(t, names...)

	// every subset of the schema left out, from none to all
	for mask := 0; mask < 1<<len(names); mask++ {
		record := map[string]float64{}
		var wantMissing []string
		for i, n := range names {
			if mask&(1<<i) != 0 {
				wantMissing = append(wantMissing, n)
				continue
			}
			record[n] = float64(i)
		}

		vec, err := Assemble(record, schema)
		if len(wantMissing) == 0 {
			require.NoError(t, err)
			assert.Len(t, vec, len(names))
			continue
		}

		var mfe *MissingFeaturesError
		require.True(t, errors.As(err, &mfe), "mask %b", mask)
		assert.Equal(t, wantMissing, mfe.Missing, "mask %b", mask)
		assert.Nil(t, vec)
	}
}

func TestMissingFeaturesError_ToStandardError(t *testing.T) {
	err := &MissingFeaturesError{Missing: []string{"MMSE", "ADL"}}

	std := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeMissingFeatures, std.Code)
	assert.Equal(t, []string{"MMSE", "ADL"}, std.Metadata["missing_features"])
	assert.Equal(t, "Missing required features: MMSE, ADL", err.Error())
}
