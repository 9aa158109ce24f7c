package api

import (
	"time"

	"disease-predictor/internal/inference"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error           string   `json:"error"`
	MissingFeatures []string `json:"missing_features,omitempty"`
	Message         string   `json:"message,omitempty"`
	Details         string   `json:"details,omitempty"`
}

type FeaturesResponse struct {
	Features []string `json:"features"`
}

type BatchResponse struct {
	Results []inference.Result `json:"results"`
	Count   int                `json:"count"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes the model the server is scoring with.
type ReadyResponse struct {
	Status       string `json:"status"`
	SchemaSize   int    `json:"schemaSize"`
	SchemaSource string `json:"schemaSource"`
	ModelFormat  string `json:"modelFormat,omitempty"`
	Scaled       int    `json:"scaledColumns"`
}
