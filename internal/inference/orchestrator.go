package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "disease-predictor/internal/common/errors"
	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/common/metrics"
	"disease-predictor/internal/features"
	"disease-predictor/internal/model"
)

const tracerName = "disease-predictor/inference"

// Result is the scored outcome for one record.
type Result struct {
	Probability     float64   `json:"probability"`
	Prediction      int       `json:"prediction"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Recommendations []string  `json:"recommendations"`
}

// Orchestrator turns raw records into risk results. It holds no mutable state and is
// safe for concurrent use.
type Orchestrator struct {
	converter *features.Converter
	bundle    *model.Bundle
	log       logger.Logger
	tracer    trace.Tracer
}

type Option func(*Orchestrator)

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

func New(converter *features.Converter, bundle *model.Bundle, log logger.Logger, opts ...Option) *Orchestrator {
	if converter == nil {
		converter = features.NewConverter(nil)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Orchestrator{
		converter: converter,
		bundle:    bundle,
		log:       log.WithFields(map[string]interface{}{"component": "inference"}),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Schema() *features.Schema {
	return o.bundle.Schema
}

func (o *Orchestrator) Converter() *features.Converter {
	return o.converter
}

func (o *Orchestrator) Bundle() *model.Bundle {
	return o.bundle
}

// Predict converts, assembles and scores a single record.
func (o *Orchestrator) Predict(ctx context.Context, record map[string]interface{}) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "inference.Predict",
		trace.WithAttributes(attribute.Int("record.fields", len(record))))
	defer span.End()

	converted, err := o.convert(ctx, func() (map[string]float64, error) {
		return o.converter.ConvertRecord(record)
	})
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	row, err := o.assemble(ctx, converted)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	start := time.Now()
	results, err := o.score(ctx, [][]float64{row})
	metrics.InferenceDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	res := &results[0]
	span.SetAttributes(
		attribute.Float64("risk.probability", res.Probability),
		attribute.String("risk.level", res.RiskLevel.String()),
	)
	o.log.Debug("record scored", map[string]interface{}{
		"probability": res.Probability,
		"riskLevel":   res.RiskLevel,
	})
	return res, nil
}

// PredictBatch scores a columnar batch. Any invalid column fails the whole batch, and so
// does a row that lacks a schema feature.
func (o *Orchestrator) PredictBatch(ctx context.Context, columns map[string][]interface{}) ([]Result, error) {
	ctx, span := o.tracer.Start(ctx, "inference.PredictBatch",
		trace.WithAttributes(attribute.Int("batch.columns", len(columns))))
	defer span.End()

	converted, err := o.convertBatch(ctx, columns)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	n := features.RowCount(converted)
	span.SetAttributes(attribute.Int("batch.rows", n))
	if n == 0 {
		// No row to assemble, so check the column names alone.
		names := make(map[string]float64, len(converted))
		for name := range converted {
			names[name] = 0
		}
		if _, err := o.assemble(ctx, names); err != nil {
			failSpan(span, err)
			return nil, err
		}
		return []Result{}, nil
	}

	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		row, err := o.assemble(ctx, features.Row(converted, i))
		if err != nil {
			failSpan(span, err)
			return nil, err
		}
		X[i] = row
	}

	start := time.Now()
	results, err := o.score(ctx, X)
	metrics.InferenceDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	o.log.Debug("batch scored", map[string]interface{}{"rows": n})
	return results, nil
}

func (o *Orchestrator) convert(ctx context.Context, fn func() (map[string]float64, error)) (map[string]float64, error) {
	_, span := o.tracer.Start(ctx, "inference.convert")
	defer span.End()

	out, err := fn()
	if err != nil {
		o.recordValidationFailure(err)
		failSpan(span, err)
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) convertBatch(ctx context.Context, columns map[string][]interface{}) (map[string][]float64, error) {
	_, span := o.tracer.Start(ctx, "inference.convert")
	defer span.End()

	out, err := o.converter.ConvertBatch(columns)
	if err != nil {
		o.recordValidationFailure(err)
		failSpan(span, err)
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) assemble(ctx context.Context, record map[string]float64) ([]float64, error) {
	_, span := o.tracer.Start(ctx, "inference.assemble")
	defer span.End()

	row, err := features.Assemble(record, o.bundle.Schema)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	return row, nil
}

// score scales the configured subset in place and queries the classifier. Any failure or
// panic in here is reported as INFERENCE_FAILED; the detail is logged, never returned to callers.
func (o *Orchestrator) score(ctx context.Context, X [][]float64) (results []Result, err error) {
	_, span := o.tracer.Start(ctx, "inference.score",
		trace.WithAttributes(attribute.Int("rows", len(X))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during inference: %v", r)
		}
		if err != nil {
			o.log.WithError(err).Error("inference failed", map[string]interface{}{"rows": len(X)})
			err = apperrors.NewInferenceFailedError(err)
			failSpan(span, err)
			results = nil
		}
	}()

	if err = o.scale(X); err != nil {
		return nil, err
	}

	labels, err := o.bundle.Classifier.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	proba, err := o.bundle.Classifier.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("predict proba: %w", err)
	}
	if len(labels) != len(X) || len(proba) != len(X) {
		return nil, fmt.Errorf("classifier returned %d labels and %d probability rows for %d inputs", len(labels), len(proba), len(X))
	}

	results = make([]Result, len(X))
	for i := range X {
		if len(proba[i]) < 2 {
			return nil, fmt.Errorf("probability row %d has %d columns, positive class needs 2", i, len(proba[i]))
		}
		p := proba[i][1]
		level := RiskLevelFromProbability(p)
		results[i] = Result{
			Probability:     p,
			Prediction:      labels[i],
			RiskLevel:       level,
			Recommendations: level.Recommendations(),
		}
	}
	return results, nil
}

func (o *Orchestrator) scale(X [][]float64) error {
	idx := o.bundle.ScalingIndices
	if len(idx) == 0 {
		return nil
	}

	sub := make([][]float64, len(X))
	for i, row := range X {
		vals := make([]float64, len(idx))
		for j, col := range idx {
			vals[j] = row[col]
		}
		sub[i] = vals
	}

	scaled, err := o.bundle.Scaler.Transform(sub)
	if err != nil {
		return fmt.Errorf("scale: %w", err)
	}
	if len(scaled) != len(X) {
		return fmt.Errorf("scaler returned %d rows for %d inputs", len(scaled), len(X))
	}
	for i, row := range X {
		if len(scaled[i]) != len(idx) {
			return fmt.Errorf("scaler returned %d columns, expected %d", len(scaled[i]), len(idx))
		}
		for j, col := range idx {
			row[col] = scaled[i][j]
		}
	}
	return nil
}

// recordValidationFailure labels by feature only for schema names so callers cannot grow the label set.
func (o *Orchestrator) recordValidationFailure(err error) {
	var verr *features.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	label := "other"
	if _, ok := o.bundle.Schema.Index(verr.Feature); ok {
		label = verr.Feature
	}
	metrics.ValidationFailures.WithLabelValues(label).Inc()
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
