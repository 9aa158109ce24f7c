package predictrisk

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "disease-predictor/internal/common/errors"
	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/common/metrics"
	"disease-predictor/internal/common/validation"
	"disease-predictor/internal/inference"
)

const (
	TaskType = "predict-cognitive-risk"
)

// Predictor is the part of the orchestrator the worker needs.
type Predictor interface {
	Predict(ctx context.Context, record map[string]interface{}) (*inference.Result, error)
}

type Handler struct {
	config       *Config
	predictor    Predictor
	validator    *validation.BodyValidator
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, predictor Predictor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		predictor:    predictor,
		validator:    validation.MustBodyValidator("assessment job", validation.AssessmentJobSchema),
		errorHandler: apperrors.NewErrorHandler(log).WithMaxRetries(config.MaxRetries),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	timeout := h.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute scores the job input. It is exported so tests can run it without a broker.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.predictor.Predict(ctx, input.Features)
	if err != nil {
		return nil, err
	}

	h.logger.Info("risk assessed", map[string]interface{}{
		"patientId":   input.PatientID,
		"riskLevel":   res.RiskLevel,
		"probability": res.Probability,
	})
	metrics.PredictionsTotal.WithLabelValues("worker", res.RiskLevel.String()).Inc()

	return &Output{
		PatientID:       input.PatientID,
		Probability:     res.Probability,
		Prediction:      res.Prediction,
		RiskLevel:       res.RiskLevel,
		Recommendations: res.Recommendations,
	}, nil
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(variables)))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.NewInvalidRequestBodyError(err.Error())
	}
	if err := h.validator.Validate(doc); err != nil {
		return nil, err
	}

	vars := doc.(map[string]interface{})
	input := &Input{Features: vars["features"].(map[string]interface{})}
	if id, ok := vars["patientId"].(string); ok {
		input.PatientID = id
	}
	return input, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	std := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(std.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, std)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, apperrors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}
