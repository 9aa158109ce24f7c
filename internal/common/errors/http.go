package errors

import "net/http"

// HTTPStatusMapping maps internal error codes to response status codes.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeValidationFailed:      http.StatusBadRequest,
	ErrCodeMissingFeatures:       http.StatusBadRequest,
	ErrCodeInvalidRequestBody:    http.StatusBadRequest,
	ErrCodeInferenceFailed:       http.StatusInternalServerError,
	ErrCodeInternal:              http.StatusInternalServerError,
	ErrCodeArtifactLoadFailed:    http.StatusInternalServerError,
	ErrCodeArtifactNotFound:      http.StatusInternalServerError,
	ErrCodeSchemaUnavailable:     http.StatusServiceUnavailable,
	ErrCodeStoreConnectionFailed: http.StatusServiceUnavailable,
}

// HTTPStatus returns the status for a code, defaulting to 500.
func HTTPStatus(code ErrorCode) int {
	if status, ok := HTTPStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text safe to show a caller. Server-side detail never leaves the process.
func (e *StandardError) PublicMessage() string {
	if IsClientError(e.Code) {
		return e.Message
	}
	return "Internal server error"
}
