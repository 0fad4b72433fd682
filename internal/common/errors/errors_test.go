package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidCriteria, http.StatusBadRequest},
		{ErrCodeMandateNotFound, http.StatusBadRequest},
		{ErrCodeMalformedSignal, http.StatusBadRequest},
		{ErrCodeDataUnavailable, http.StatusInternalServerError},
		{ErrCodeWeightPersistFailed, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.code))
		})
	}
}

func TestAsStandardError_ThroughWrapping(t *testing.T) {
	base := NewDataUnavailableError("postgres", fmt.Errorf("dial tcp: connection refused"))
	wrapped := fmt.Errorf("search mandate m-1: %w", base)

	stdErr, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeDataUnavailable, stdErr.Code)
	assert.True(t, IsCode(wrapped, ErrCodeDataUnavailable))
	assert.False(t, IsCode(wrapped, ErrCodeInvalidCriteria))
}

func TestStandardError_UnwrapAndIs(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewWeightPersistFailedError("m-1", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", err), &StandardError{Code: ErrCodeWeightPersistFailed})
	assert.NotErrorIs(t, err, &StandardError{Code: ErrCodeDataUnavailable})
}

func TestNormalize_UnknownError(t *testing.T) {
	stdErr := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "boom", stdErr.Details)
	assert.False(t, stdErr.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable code keeps retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewDataUnavailableError("elasticsearch", stderrors.New("503")))
		assert.Equal(t, "DATA_UNAVAILABLE", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
		assert.Equal(t, "DATA_UNAVAILABLE", bpmn.ToErrorVariables()["originalErrorCode"])
	})

	t.Run("circuit open surfaces as data unavailable", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewCircuitOpenError("candidates", stderrors.New("open")))
		assert.Equal(t, "DATA_UNAVAILABLE", bpmn.Code)
		assert.Equal(t, "CIRCUIT_OPEN", bpmn.ErrorVariables["originalErrorCode"])
	})

	t.Run("business error has no retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewInvalidCriteriaError("revenueMin > revenueMax"))
		assert.Equal(t, "INVALID_CRITERIA", bpmn.Code)
		assert.Zero(t, bpmn.Retries)
		assert.False(t, bpmn.Retryable)
	})
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidCriteria))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeMalformedSignal))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeMandateNotFound))
	assert.Equal(t, "WEIGHTS", GetErrorCategory(ErrCodeWeightVersionConflict))
	assert.Equal(t, "DATA", GetErrorCategory(ErrCodeDataUnavailable))
	assert.Equal(t, "SIGNALS", GetErrorCategory(ErrCodeSignalPersistFailed))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}
