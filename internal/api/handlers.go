package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "disease-predictor/internal/common/errors"
	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/common/metrics"
	"disease-predictor/internal/common/validation"
	"disease-predictor/internal/features"
	"disease-predictor/internal/inference"
)

const (
	missingFeaturesMessage = "Please provide values for all required features"
	metricsSource          = "api"

	minBodyBytes       = 1 << 20
	bytesPerBatchRow   = 4 << 10
	unlimitedBodyBytes = 32 << 20
)

// bodyLimit sizes request bodies for the largest accepted batch.
func bodyLimit(maxBatchRows int) int64 {
	if maxBatchRows <= 0 {
		return unlimitedBodyBytes
	}
	limit := int64(maxBatchRows) * bytesPerBatchRow
	if limit < minBodyBytes {
		return minBodyBytes
	}
	return limit
}

// Handler serves the prediction endpoints.
type Handler struct {
	orch         *inference.Orchestrator
	table        *features.Table
	log          logger.Logger
	predictBody  *validation.BodyValidator
	batchBody    *validation.BodyValidator
	maxBatchRows int
	maxBodyBytes int64
}

// NewHandler wires a handler around a ready orchestrator. maxBatchRows <= 0 disables the batch limit.
func NewHandler(orch *inference.Orchestrator, log logger.Logger, maxBatchRows int) *Handler {
	return &Handler{
		orch:         orch,
		table:        orch.Converter().Table(),
		log:          log.WithFields(map[string]interface{}{"component": "api"}),
		predictBody:  validation.MustBodyValidator("predict", validation.PredictRequestSchema),
		batchBody:    validation.MustBodyValidator("batch", validation.BatchRequestSchema),
		maxBatchRows: maxBatchRows,
		maxBodyBytes: bodyLimit(maxBatchRows),
	}
}

func (h *Handler) body(c *gin.Context) io.Reader {
	if c.Request.Body == nil {
		return nil
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	return c.Request.Body
}

func (h *Handler) Predict(c *gin.Context) {
	doc, err := decodeBody(h.body(c))
	if err != nil {
		h.respondError(c, "predict", err)
		return
	}
	if err := h.predictBody.Validate(doc); err != nil {
		h.respondError(c, "predict", err)
		return
	}

	res, err := h.orch.Predict(c.Request.Context(), doc.(map[string]interface{}))
	if err != nil {
		h.respondError(c, "predict", err)
		return
	}

	metrics.PredictionsTotal.WithLabelValues(metricsSource, res.RiskLevel.String()).Inc()
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PredictBatch(c *gin.Context) {
	doc, err := decodeBody(h.body(c))
	if err != nil {
		h.respondError(c, "predict_batch", err)
		return
	}
	if err := h.batchBody.Validate(doc); err != nil {
		h.respondError(c, "predict_batch", err)
		return
	}

	raw := doc.(map[string]interface{})["columns"].(map[string]interface{})
	columns := make(map[string][]interface{}, len(raw))
	for name, v := range raw {
		col := v.([]interface{})
		if h.maxBatchRows > 0 && len(col) > h.maxBatchRows {
			h.respondError(c, "predict_batch", apperrors.NewInvalidRequestBodyError(
				fmt.Sprintf("column '%s' has %d rows, the limit is %d", name, len(col), h.maxBatchRows)))
			return
		}
		columns[name] = col
	}

	results, err := h.orch.PredictBatch(c.Request.Context(), columns)
	if err != nil {
		h.respondError(c, "predict_batch", err)
		return
	}

	for _, r := range results {
		metrics.PredictionsTotal.WithLabelValues(metricsSource, r.RiskLevel.String()).Inc()
	}
	c.JSON(http.StatusOK, BatchResponse{Results: results, Count: len(results)})
}

func (h *Handler) ValidValues(c *gin.Context) {
	c.JSON(http.StatusOK, h.table.ValidValues())
}

func (h *Handler) Features(c *gin.Context) {
	c.JSON(http.StatusOK, FeaturesResponse{Features: h.table.FeatureNames()})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

func (h *Handler) Ready(c *gin.Context) {
	b := h.orch.Bundle()
	c.JSON(http.StatusOK, ReadyResponse{
		Status:       "ready",
		SchemaSize:   b.Schema.Len(),
		SchemaSource: string(b.SchemaSource),
		ModelFormat:  b.Format,
		Scaled:       len(b.ScalingColumns),
	})
}

func (h *Handler) respondError(c *gin.Context, endpoint string, err error) {
	std := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(std.Code)
	metrics.PredictionFailures.WithLabelValues(metricsSource, string(std.Code)).Inc()

	fields := map[string]interface{}{
		"endpoint":  endpoint,
		"errorCode": std.Code,
		"requestId": c.GetString(requestIDKey),
	}
	if apperrors.IsClientError(std.Code) {
		fields["message"] = std.Message
		h.log.Warn("request rejected", fields)
	} else {
		fields["details"] = std.Details
		h.log.WithError(err).Error("request failed", fields)
	}

	switch std.Code {
	case apperrors.ErrCodeMissingFeatures:
		missing, _ := std.Metadata["missing_features"].([]string)
		c.JSON(status, ErrorResponse{
			Error:           std.Message,
			MissingFeatures: missing,
			Message:         missingFeaturesMessage,
		})
	case apperrors.ErrCodeInvalidRequestBody:
		c.JSON(status, ErrorResponse{Error: std.Message, Details: std.Details})
	default:
		c.JSON(status, ErrorResponse{Error: std.PublicMessage()})
	}
}

// decodeBody keeps numbers as json.Number so integers and decimals reach the converter unrounded.
func decodeBody(body io.Reader) (interface{}, error) {
	if body == nil {
		return nil, apperrors.NewInvalidRequestBodyError("empty body")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewInvalidRequestBodyError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, apperrors.NewInvalidRequestBodyError(err.Error())
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperrors.NewInvalidRequestBodyError("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.NewInvalidRequestBodyError(err.Error())
	}
	if dec.More() {
		return nil, apperrors.NewInvalidRequestBodyError("unexpected data after JSON body")
	}
	return doc, nil
}
