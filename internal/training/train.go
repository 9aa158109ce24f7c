package training

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"disease-predictor/internal/artifact"
	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/model"
)

// Options control a training run.
type Options struct {
	Forest    ForestParams
	TestRatio float64
	Folds     int
}

func DefaultOptions() Options {
	return Options{
		Forest:    DefaultForestParams(),
		TestRatio: 0.2,
		Folds:     5,
	}
}

// Report summarizes a run. It is written next to the artifacts as YAML.
type Report struct {
	TrainedAt          time.Time `yaml:"trained_at"`
	Rows               int       `yaml:"rows"`
	TrainRows          int       `yaml:"train_rows"`
	TestRows           int       `yaml:"test_rows"`
	Features           int       `yaml:"features"`
	NumericalColumns   int       `yaml:"numerical_columns"`
	CategoricalColumns int       `yaml:"categorical_columns"`
	Trees              int       `yaml:"trees"`
	MaxDepth           int       `yaml:"max_depth"`
	Seed               int64     `yaml:"seed"`
	CVROCAUC           []float64 `yaml:"cv_roc_auc"`
	CVROCAUCMean       float64   `yaml:"cv_roc_auc_mean"`
	CVROCAUCStd        float64   `yaml:"cv_roc_auc_std"`
	TrainAccuracy      float64   `yaml:"train_accuracy"`
	TestAccuracy       float64   `yaml:"test_accuracy"`
	TestROCAUC         float64   `yaml:"test_roc_auc"`
}

// Result is a fitted model ready to be persisted.
type Result struct {
	Forest     *model.Forest
	Scaler     *model.StandardScaler
	ColumnInfo *model.ColumnInfo
	Report     Report
}

// Train standardizes the scaling columns over the whole dataset, holds out a stratified
// test split, cross-validates on the training part and fits the final forest on it.
func Train(ctx context.Context, ds *Dataset, opts Options, log logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	scaleNames, scaleIdx := ds.ScalingColumns()
	scaler, scaled, err := standardize(ds.X, scaleNames, scaleIdx)
	if err != nil {
		return nil, err
	}
	work := &Dataset{Columns: ds.Columns, X: scaled, Y: ds.Y}

	trainIdx, testIdx, err := StratifiedSplit(work.Y, opts.TestRatio, opts.Forest.Seed)
	if err != nil {
		return nil, err
	}
	Xtr, ytr := work.Subset(trainIdx)
	Xte, yte := work.Subset(testIdx)
	log.Info("dataset split", map[string]interface{}{"train": len(trainIdx), "test": len(testIdx)})

	cv, err := crossValidate(ctx, Xtr, ytr, opts)
	if err != nil {
		return nil, err
	}
	cvMean, cvStd := MeanStd(cv)
	log.Info("cross validation finished", map[string]interface{}{"rocAucMean": cvMean, "rocAucStd": cvStd})

	forest, err := FitForest(ctx, Xtr, ytr, work.Columns, opts.Forest)
	if err != nil {
		return nil, err
	}

	trainAcc, _, err := evaluate(forest, Xtr, ytr)
	if err != nil {
		return nil, err
	}
	testAcc, testAUC, err := evaluate(forest, Xte, yte)
	if err != nil {
		return nil, err
	}
	log.Info("model evaluated", map[string]interface{}{
		"trainAccuracy": trainAcc,
		"testAccuracy":  testAcc,
		"testRocAuc":    testAUC,
	})

	scaledSet := toSet(scaleNames)
	var categorical []string
	for _, name := range work.Columns {
		if !scaledSet[name] {
			categorical = append(categorical, name)
		}
	}

	return &Result{
		Forest: forest,
		Scaler: scaler,
		ColumnInfo: &model.ColumnInfo{
			NumericalColumns:   scaleNames,
			CategoricalColumns: categorical,
			FeatureNames:       append([]string(nil), work.Columns...),
			FeatureNamesIn:     append([]string(nil), work.Columns...),
		},
		Report: Report{
			TrainedAt:          time.Now().UTC(),
			Rows:               len(work.X),
			TrainRows:          len(trainIdx),
			TestRows:           len(testIdx),
			Features:           len(work.Columns),
			NumericalColumns:   len(scaleNames),
			CategoricalColumns: len(categorical),
			Trees:              opts.Forest.NTrees,
			MaxDepth:           opts.Forest.Tree.MaxDepth,
			Seed:               opts.Forest.Seed,
			CVROCAUC:           cv,
			CVROCAUCMean:       cvMean,
			CVROCAUCStd:        cvStd,
			TrainAccuracy:      trainAcc,
			TestAccuracy:       testAcc,
			TestROCAUC:         testAUC,
		},
	}, nil
}

// Save writes the three artifacts under names.
func (r *Result) Save(ctx context.Context, w artifact.Writer, names model.ArtifactNames) error {
	if err := artifact.Prepare(ctx, w); err != nil {
		return err
	}

	blobs := []struct {
		name   string
		encode func() ([]byte, error)
	}{
		{names.Classifier, r.Forest.Encode},
		{names.Scaler, r.Scaler.Encode},
		{names.ColumnInfo, r.ColumnInfo.Encode},
	}
	for _, b := range blobs {
		data, err := b.encode()
		if err != nil {
			return fmt.Errorf("encode %s: %w", b.name, err)
		}
		if err := w.Put(ctx, b.name, data); err != nil {
			return fmt.Errorf("write %s: %w", b.name, err)
		}
	}
	return nil
}

func WriteReport(path string, report Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

func standardize(X [][]float64, names []string, idx []int) (*model.StandardScaler, [][]float64, error) {
	sub := make([][]float64, len(X))
	for i, row := range X {
		vals := make([]float64, len(idx))
		for j, col := range idx {
			vals[j] = row[col]
		}
		sub[i] = vals
	}

	scaler, err := model.FitStandardScaler(sub, names)
	if err != nil {
		return nil, nil, err
	}
	transformed, err := scaler.Transform(sub)
	if err != nil {
		return nil, nil, err
	}

	out := make([][]float64, len(X))
	for i, row := range X {
		cp := append([]float64(nil), row...)
		for j, col := range idx {
			cp[col] = transformed[i][j]
		}
		out[i] = cp
	}
	return scaler, out, nil
}

func crossValidate(ctx context.Context, X [][]float64, y []int, opts Options) ([]float64, error) {
	folds, err := StratifiedKFold(y, opts.Folds, opts.Forest.Seed)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{X: X, Y: y}

	scores := make([]float64, len(folds))
	for k, held := range folds {
		Xtr, ytr := ds.Subset(Complement(len(y), held))
		Xte, yte := ds.Subset(held)

		forest, err := FitForest(ctx, Xtr, ytr, nil, opts.Forest)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", k, err)
		}
		_, auc, err := evaluate(forest, Xte, yte)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", k, err)
		}
		scores[k] = auc
	}
	return scores, nil
}

func evaluate(forest *model.Forest, X [][]float64, y []int) (accuracy, auc float64, err error) {
	pred, err := forest.Predict(X)
	if err != nil {
		return 0, 0, err
	}
	proba, err := forest.PredictProba(X)
	if err != nil {
		return 0, 0, err
	}
	scores, err := positiveScores(forest.Classes, proba)
	if err != nil {
		return 0, 0, err
	}
	accuracy = Accuracy(y, pred)
	if auc, err = ROCAUC(y, scores); err != nil {
		// A split without both classes still has a meaningful accuracy.
		return accuracy, 0, nil
	}
	return accuracy, auc, nil
}
