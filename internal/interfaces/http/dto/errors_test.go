package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeUnknownDocumentType, http.StatusBadRequest},
		{ErrCodeInvalidLineItem, http.StatusBadRequest},
		{ErrCodeSealedDocument, http.StatusConflict},
		{ErrCodeAlreadyFinalized, http.StatusConflict},
		{ErrCodeFinalizeInProgress, http.StatusConflict},
		{ErrCodeStructuralInconsistency, http.StatusInternalServerError},
		{ErrCodeArtifactRenderFailed, http.StatusBadGateway},
		{ErrCodeBlobStoreFailed, http.StatusBadGateway},
		{ErrCodeRepositoryCommitFailed, http.StatusServiceUnavailable},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"INVALID_STATE", ErrCodeInvalidState},
		{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
		{"INTERNAL_ERROR", ErrCodeInternal},
		// API codes pass through unchanged
		{ErrCodeNotFound, ErrCodeNotFound},
		// Unknown codes pass through unchanged
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

// ==================== Domain error coverage ====================

func TestDocumentErrorsAreMapped(t *testing.T) {
	domainErrors := []*shared.DomainError{
		document.ErrDraftWriteFailed,
		document.ErrNumberGenerationFailed,
		document.ErrAlreadyFinalized,
		document.ErrSealedDocument,
		document.ErrArtifactRenderFailed,
		document.ErrBlobStoreFailed,
		document.ErrRepositoryCommitFailed,
		document.ErrStructuralInconsistency,
		document.ErrNotFinalized,
		document.ErrFinalizeInProgress,
		document.ErrUnknownDocumentType,
		document.ErrInvalidLineItem,
		document.ErrInvalidCommit,
		shared.ErrNotFound,
		shared.ErrAlreadyExists,
		shared.ErrInvalidInput,
		shared.ErrConcurrencyConflict,
		shared.ErrInvalidState,
	}

	for _, de := range domainErrors {
		t.Run(de.Code, func(t *testing.T) {
			code := NormalizeErrorCode(de.Code)
			assert.True(t, strings.HasPrefix(code, "ERR_"), "domain code %s has no API code", de.Code)
			_, ok := ErrorCodeHTTPStatus[code]
			assert.True(t, ok, "API code %s has no status", code)
		})
	}
}

func TestErrorCodeFormat(t *testing.T) {
	for code := range ErrorCodeHTTPStatus {
		assert.True(t, strings.HasPrefix(code, "ERR_"), "Error code %s should start with ERR_", code)
	}
	for _, code := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "mapped code %s should have a status", code)
	}
}

// ==================== Responses ====================

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("NOT_FOUND", "Resource not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Resource not found", resp.Error.Message)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID("SEALED_DOCUMENT", "invoice is sealed", "req-123-456")

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSealedDocument, resp.Error.Code)
	assert.Equal(t, "req-123-456", resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "customer.name", Message: "This field is required"},
		{Field: "items", Message: "Must be at least 1"},
	}

	resp := NewValidationErrorResponse("Validation failed", "req-789", details)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	require.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "customer.name", resp.Error.Details[0].Field)
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "document not found", "req-test-123")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.Success)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeNotFound, decoded.Error.Code)
	assert.Equal(t, "req-test-123", decoded.Error.RequestID)
	assert.NotContains(t, string(data), `"data"`)
}

func TestErrorResponseTimestamp(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse(ErrCodeInternal, "Server error")
	after := time.Now()

	assert.False(t, resp.Error.Timestamp.Before(before))
	assert.False(t, resp.Error.Timestamp.After(after))
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"name": "test"})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.Nil(t, resp.Meta)
}

func TestNewListResponse(t *testing.T) {
	resp := NewListResponse([]string{"v2", "v1"})
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Total)

	empty := NewListResponse[string](nil)
	assert.Equal(t, []string{}, empty.Data)
	assert.Equal(t, 0, empty.Meta.Total)

	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data":[]`)
}
