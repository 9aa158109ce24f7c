package features

import (
	"fmt"
	"strings"

	apperrors "disease-predictor/internal/common/errors"
)

// ValidationError reports a value that does not satisfy its feature's encoding.
type ValidationError struct {
	Feature string
	// Values holds the offending raw values as rendered in the message, in first-seen order.
	Values []string
	// Valid holds the accepted labels for categorical features, ordered by code.
	Valid []string
	msg   string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// ToStandardError maps the error onto VALIDATION_FAILED.
func (e *ValidationError) ToStandardError() *apperrors.StandardError {
	meta := map[string]interface{}{
		"feature": e.Feature,
		"values":  e.Values,
	}
	if e.Valid != nil {
		meta["valid_values"] = e.Valid
	}
	return apperrors.NewValidationError(e.msg, meta)
}

func invalidLabel(feature, value string, valid []string) *ValidationError {
	return &ValidationError{
		Feature: feature,
		Values:  []string{value},
		Valid:   valid,
		msg:     fmt.Sprintf("Invalid value '%s' for feature '%s'. Valid values are: %s", value, feature, quoteList(valid)),
	}
}

func invalidLabels(feature string, values, valid []string) *ValidationError {
	return &ValidationError{
		Feature: feature,
		Values:  values,
		Valid:   valid,
		msg:     fmt.Sprintf("Invalid values for '%s': %s. Valid values are: %s", feature, quoteList(values), quoteList(valid)),
	}
}

func invalidNumber(feature, value string) *ValidationError {
	return &ValidationError{
		Feature: feature,
		Values:  []string{value},
		msg:     fmt.Sprintf("Expected numerical value for '%s', got '%s'", feature, value),
	}
}

func invalidNumbers(feature string, values []string) *ValidationError {
	return &ValidationError{
		Feature: feature,
		Values:  values,
		msg:     fmt.Sprintf("Expected numerical values for '%s', got: %s", feature, quoteList(values)),
	}
}

func rowCountMismatch(feature string, got, want int) *ValidationError {
	return &ValidationError{
		Feature: feature,
		msg:     fmt.Sprintf("Column '%s' has %d rows, expected %d", feature, got, want),
	}
}

// MissingFeaturesError lists every schema feature absent from a record, in schema order.
type MissingFeaturesError struct {
	Missing []string
}

func (e *MissingFeaturesError) Error() string {
	return "Missing required features: " + strings.Join(e.Missing, ", ")
}

// ToStandardError maps the error onto MISSING_FEATURES.
func (e *MissingFeaturesError) ToStandardError() *apperrors.StandardError {
	return apperrors.NewMissingFeaturesError(e.Missing)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
