package model

import (
	"context"
	"errors"
	"fmt"

	apperrors "disease-predictor/internal/common/errors"
	"disease-predictor/internal/artifact"
	"disease-predictor/internal/features"
)

// Source reads artifact blobs by name.
type Source interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// ArtifactNames are the blob keys of one deployed model.
type ArtifactNames struct {
	Classifier string
	Scaler     string
	ColumnInfo string
}

// Bundle is everything inference needs, resolved once at startup and read-only afterwards.
type Bundle struct {
	Classifier     Classifier
	Scaler         Scaler
	ColumnInfo     *ColumnInfo
	Schema         *features.Schema
	SchemaSource   SchemaSource
	ScalingColumns []string
	ScalingIndices []int
	Format         string
}

// NewBundle resolves the schema and scaling subset for an already-decoded model.
func NewBundle(clf Classifier, scaler Scaler, info *ColumnInfo) (*Bundle, error) {
	schema, source, err := ResolveSchema(clf, info)
	if err != nil {
		return nil, err
	}

	cols, idx := ScalingSubset(info, schema)
	if len(cols) > 0 && scaler == nil {
		return nil, apperrors.NewArtifactLoadFailedError("scaler", fmt.Errorf("%d columns need scaling but no scaler is loaded", len(cols)))
	}
	if ss, ok := scaler.(*StandardScaler); ok && len(cols) > 0 {
		if err := checkScalerColumns(ss, cols); err != nil {
			return nil, apperrors.NewArtifactLoadFailedError("scaler", err)
		}
	}

	b := &Bundle{
		Classifier:     clf,
		Scaler:         scaler,
		ColumnInfo:     info,
		Schema:         schema,
		SchemaSource:   source,
		ScalingColumns: cols,
		ScalingIndices: idx,
	}
	if f, ok := clf.(*Forest); ok {
		b.Format = f.Format
		if f.NFeatures != schema.Len() {
			return nil, apperrors.NewArtifactLoadFailedError("classifier",
				fmt.Errorf("forest expects %d features, schema has %d", f.NFeatures, schema.Len()))
		}
	}
	return b, nil
}

// Unencoded lists schema features the encoding table does not describe. They are parsed as numbers.
func (b *Bundle) Unencoded(table *features.Table) []string {
	var out []string
	for _, name := range b.Schema.Names() {
		if !table.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// LoadArtifacts reads and decodes the three artifacts and resolves the bundle.
func LoadArtifacts(ctx context.Context, src Source, names ArtifactNames) (*Bundle, error) {
	clfBlob, err := fetch(ctx, src, names.Classifier)
	if err != nil {
		return nil, err
	}
	forest, err := DecodeForest(clfBlob)
	if err != nil {
		return nil, apperrors.NewArtifactLoadFailedError(names.Classifier, err)
	}

	scalerBlob, err := fetch(ctx, src, names.Scaler)
	if err != nil {
		return nil, err
	}
	scaler, err := DecodeScaler(scalerBlob)
	if err != nil {
		return nil, apperrors.NewArtifactLoadFailedError(names.Scaler, err)
	}

	infoBlob, err := fetch(ctx, src, names.ColumnInfo)
	if err != nil {
		return nil, err
	}
	info, err := DecodeColumnInfo(infoBlob)
	if err != nil {
		return nil, apperrors.NewArtifactLoadFailedError(names.ColumnInfo, err)
	}

	return NewBundle(forest, scaler, info)
}

func fetch(ctx context.Context, src Source, name string) ([]byte, error) {
	blob, err := src.Get(ctx, name)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, apperrors.NewArtifactNotFoundError(name)
		}
		return nil, apperrors.NewArtifactLoadFailedError(name, err)
	}
	return blob, nil
}

func checkScalerColumns(s *StandardScaler, subset []string) error {
	if s.Width() != len(subset) {
		return fmt.Errorf("scaler fit on %d columns, scaling subset has %d", s.Width(), len(subset))
	}
	if len(s.Columns) == 0 {
		return nil
	}
	for i, name := range subset {
		if s.Columns[i] != name {
			return fmt.Errorf("scaler column %d is %q, scaling subset has %q", i, s.Columns[i], name)
		}
	}
	return nil
}
