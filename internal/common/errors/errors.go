// Package errors provides standardized error handling shared by the HTTP API and the workflow worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Client errors
const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeMissingFeatures    ErrorCode = "MISSING_FEATURES"
	ErrCodeInvalidRequestBody ErrorCode = "INVALID_REQUEST_BODY"
)

// Server errors
const (
	ErrCodeInferenceFailed       ErrorCode = "INFERENCE_FAILED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
	ErrCodeArtifactLoadFailed    ErrorCode = "ARTIFACT_LOAD_FAILED"
	ErrCodeArtifactNotFound      ErrorCode = "ARTIFACT_NOT_FOUND"
	ErrCodeSchemaUnavailable     ErrorCode = "SCHEMA_UNAVAILABLE"
	ErrCodeStoreConnectionFailed ErrorCode = "STORE_CONNECTION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Convertible is implemented by domain errors that know their standard representation.
type Convertible interface {
	ToStandardError() *StandardError
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable validation error.
func NewValidationError(message string, metadata map[string]interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Retryable: false,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingFeaturesError creates a non-retryable completeness error listing every missing feature.
func NewMissingFeaturesError(missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingFeatures,
		Message:   "Missing required features",
		Details:   strings.Join(missing, ", "),
		Retryable: false,
		Metadata:  map[string]interface{}{"missing_features": missing},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestBodyError creates a non-retryable error for bodies that cannot be decoded.
func NewInvalidRequestBodyError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequestBody,
		Message:   "Invalid request body",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInferenceFailedError wraps a failure raised while scaling or scoring.
func NewInferenceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceFailed,
		Message:   "Prediction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps any unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewArtifactNotFoundError reports a blob that is absent from the store.
func NewArtifactNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeArtifactNotFound,
		Message:   "Model artifact not found",
		Details:   fmt.Sprintf("artifact: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewArtifactLoadFailedError reports a blob that could not be read or decoded.
func NewArtifactLoadFailedError(name string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArtifactLoadFailed,
		Message:   "Model artifact could not be loaded",
		Details:   fmt.Sprintf("artifact: %s, error: %s", name, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSchemaUnavailableError reports that no ordered feature list could be resolved.
func NewSchemaUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaUnavailable,
		Message:   "Model feature schema unavailable",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreConnectionFailedError creates a retryable artifact store connection error.
func NewStoreConnectionFailedError(backend string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreConnectionFailed,
		Message:   fmt.Sprintf("Artifact store '%s' unreachable", backend),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	var conv Convertible
	if stderrors.As(err, &conv) {
		return conv.ToStandardError()
	}

	return NewInternalError(err)
}

// ==========================
// 3. Error Classification
// ==========================

// IsClientError reports whether the code describes a problem with the caller's input.
func IsClientError(code ErrorCode) bool {
	switch code {
	case ErrCodeValidationFailed, ErrCodeMissingFeatures, ErrCodeInvalidRequestBody:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "MISSING") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ARTIFACT") || strings.Contains(codeStr, "SCHEMA"):
		return "MODEL"
	case strings.Contains(codeStr, "STORE"):
		return "STORAGE"
	case strings.Contains(codeStr, "INFERENCE"):
		return "INFERENCE"
	default:
		return "OTHER"
	}
}
