package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when a concurrent commit won the race
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeForbidden is used when the client may not reach the resource
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Document lifecycle error codes
const (
	ErrCodeUnknownDocumentType = "ERR_UNKNOWN_DOCUMENT_TYPE"
	ErrCodeInvalidLineItem     = "ERR_INVALID_LINE_ITEM"
	ErrCodeInvalidCommit       = "ERR_INVALID_COMMIT"
	ErrCodeAlreadyFinalized    = "ERR_ALREADY_FINALIZED"
	ErrCodeSealedDocument      = "ERR_SEALED_DOCUMENT"
	ErrCodeFinalizeInProgress  = "ERR_FINALIZE_IN_PROGRESS"
	ErrCodeNotFinalized        = "ERR_NOT_FINALIZED"
	// ErrCodeStructuralInconsistency means the stored versions of a key break
	// the one-current-version rule and need manual repair
	ErrCodeStructuralInconsistency = "ERR_STRUCTURAL_INCONSISTENCY"
)

// Dependency error codes
const (
	ErrCodeArtifactRenderFailed   = "ERR_ARTIFACT_RENDER_FAILED"
	ErrCodeBlobStoreFailed        = "ERR_BLOB_STORE_FAILED"
	ErrCodeRepositoryCommitFailed = "ERR_REPOSITORY_COMMIT_FAILED"
	ErrCodeDraftWriteFailed       = "ERR_DRAFT_WRITE_FAILED"
	ErrCodeNumberGeneration       = "ERR_NUMBER_GENERATION_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeForbidden:       http.StatusForbidden,

	// Document lifecycle
	ErrCodeUnknownDocumentType:     http.StatusBadRequest,
	ErrCodeInvalidLineItem:         http.StatusBadRequest,
	ErrCodeInvalidCommit:           http.StatusUnprocessableEntity,
	ErrCodeNotFinalized:            http.StatusUnprocessableEntity,
	ErrCodeAlreadyFinalized:        http.StatusConflict,
	ErrCodeSealedDocument:          http.StatusConflict,
	ErrCodeFinalizeInProgress:      http.StatusConflict,
	ErrCodeStructuralInconsistency: http.StatusInternalServerError,

	// Collaborators -> 502 when the upstream failed, 503 when the store is unavailable
	ErrCodeArtifactRenderFailed:   http.StatusBadGateway,
	ErrCodeBlobStoreFailed:        http.StatusBadGateway,
	ErrCodeNumberGeneration:       http.StatusBadGateway,
	ErrCodeRepositoryCommitFailed: http.StatusServiceUnavailable,
	ErrCodeDraftWriteFailed:       http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"ALREADY_EXISTS":           ErrCodeAlreadyExists,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_STATE":            ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":     ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":         ErrCodeValidation,
	"BAD_REQUEST":              ErrCodeBadRequest,
	"INTERNAL_ERROR":           ErrCodeInternal,
	"UNKNOWN_DOCUMENT_TYPE":    ErrCodeUnknownDocumentType,
	"INVALID_LINE_ITEM":        ErrCodeInvalidLineItem,
	"INVALID_COMMIT":           ErrCodeInvalidCommit,
	"NOT_FINALIZED":            ErrCodeNotFinalized,
	"ALREADY_FINALIZED":        ErrCodeAlreadyFinalized,
	"SEALED_DOCUMENT":          ErrCodeSealedDocument,
	"FINALIZE_IN_PROGRESS":     ErrCodeFinalizeInProgress,
	"STRUCTURAL_INCONSISTENCY": ErrCodeStructuralInconsistency,
	"ARTIFACT_RENDER_FAILED":   ErrCodeArtifactRenderFailed,
	"BLOB_STORE_FAILED":        ErrCodeBlobStoreFailed,
	"NUMBER_GENERATION_FAILED": ErrCodeNumberGeneration,
	"REPOSITORY_COMMIT_FAILED": ErrCodeRepositoryCommitFailed,
	"DRAFT_WRITE_FAILED":       ErrCodeDraftWriteFailed,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
