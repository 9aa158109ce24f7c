package model

import (
	"encoding/json"
	"fmt"

	apperrors "disease-predictor/internal/common/errors"
	"disease-predictor/internal/features"
)

// ColumnInfo is the column record written next to the classifier at training time.
type ColumnInfo struct {
	NumericalColumns   []string `json:"numerical_columns"`
	CategoricalColumns []string `json:"categorical_columns"`
	FeatureNames       []string `json:"feature_names"`
	FeatureNamesIn     []string `json:"feature_names_in_,omitempty"`
}

// DecodeColumnInfo parses a column-info artifact.
func DecodeColumnInfo(data []byte) (*ColumnInfo, error) {
	var info ColumnInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode column info: %w", err)
	}
	return &info, nil
}

// Encode serializes the record.
func (c *ColumnInfo) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// SchemaSource tells where the resolved schema came from.
type SchemaSource string

const (
	SchemaFromClassifier SchemaSource = "classifier"
	SchemaFromColumnInfo SchemaSource = "column_info"
)

// ResolveSchema picks the ordered feature list: names recorded by the classifier first,
// then the column-info feature names. There is no further fallback; an unordered
// vocabulary would silently misalign the vector.
func ResolveSchema(clf Classifier, info *ColumnInfo) (*features.Schema, SchemaSource, error) {
	if namer, ok := clf.(FeatureNamer); ok {
		if names := namer.FeatureNames(); len(names) > 0 {
			s, err := features.NewSchema(names)
			if err != nil {
				return nil, "", apperrors.NewSchemaUnavailableError(err.Error())
			}
			return s, SchemaFromClassifier, nil
		}
	}

	if info != nil {
		names := info.FeatureNames
		if len(names) == 0 {
			names = info.FeatureNamesIn
		}
		if len(names) > 0 {
			s, err := features.NewSchema(names)
			if err != nil {
				return nil, "", apperrors.NewSchemaUnavailableError(err.Error())
			}
			return s, SchemaFromColumnInfo, nil
		}
	}

	return nil, "", apperrors.NewSchemaUnavailableError("neither the classifier nor the column info declares feature names")
}

// ScalingSubset returns the numerical columns that belong to schema, in column-info order,
// with their positions in the assembled vector.
func ScalingSubset(info *ColumnInfo, schema *features.Schema) ([]string, []int) {
	if info == nil {
		return nil, nil
	}
	var (
		names   []string
		indices []int
	)
	for _, name := range info.NumericalColumns {
		if i, ok := schema.Index(name); ok {
			names = append(names, name)
			indices = append(indices, i)
		}
	}
	return names, indices
}
