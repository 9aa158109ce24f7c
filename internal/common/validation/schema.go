// Package validation checks the shape of request bodies before any feature is converted.
package validation

import (
	"fmt"
	"strings"

	apperrors "disease-predictor/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// PredictRequestSchema accepts any object. Per-feature value checks belong to the converter,
// which can name the offending feature.
const PredictRequestSchema = `{
  "type": "object"
}`

// BatchRequestSchema requires a columns object whose members are arrays.
const BatchRequestSchema = `{
  "type": "object",
  "required": ["columns"],
  "properties": {
    "columns": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"type": "array"}
    }
  }
}`

// AssessmentJobSchema describes the variables of a risk assessment job.
const AssessmentJobSchema = `{
  "type": "object",
  "required": ["features"],
  "properties": {
    "patientId": {"type": "string"},
    "features": {"type": "object"}
  }
}`

// BodyValidator validates decoded JSON documents against a compiled schema.
type BodyValidator struct {
	name   string
	schema *gojsonschema.Schema
}

// NewBodyValidator compiles schemaJSON once.
func NewBodyValidator(name, schemaJSON string) (*BodyValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &BodyValidator{name: name, schema: schema}, nil
}

// MustBodyValidator is NewBodyValidator for compile-time constant schemas.
func MustBodyValidator(name, schemaJSON string) *BodyValidator {
	v, err := NewBodyValidator(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate returns an INVALID_REQUEST_BODY error listing every schema violation.
func (v *BodyValidator) Validate(doc interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return apperrors.NewInvalidRequestBodyError(err.Error())
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		msgs[i] = desc.String()
	}
	stdErr := apperrors.NewInvalidRequestBodyError(strings.Join(msgs, "; "))
	stdErr.Metadata = map[string]interface{}{"schema": v.name, "violations": msgs}
	return stdErr
}
