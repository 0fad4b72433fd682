package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidCriteria ErrorCode = "INVALID_CRITERIA"
	ErrCodeMandateNotFound ErrorCode = "MANDATE_NOT_FOUND"

	ErrCodeDataUnavailable       ErrorCode = "DATA_UNAVAILABLE"
	ErrCodeQueryExecutionFailed  ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeIndexNotFound         ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeCircuitOpen           ErrorCode = "CIRCUIT_OPEN"
	ErrCodeSignalPersistFailed   ErrorCode = "SIGNAL_PERSIST_FAILED"
	ErrCodeMalformedSignal       ErrorCode = "MALFORMED_SIGNAL"
	ErrCodeWeightPersistFailed   ErrorCode = "WEIGHT_PERSIST_FAILED"
	ErrCodeWeightVersionConflict ErrorCode = "WEIGHT_VERSION_CONFLICT"
	ErrCodeAggregationInProgress ErrorCode = "AGGREGATION_IN_PROGRESS"

	ErrCodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches on code so sentinel-style comparisons work across wrapping.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidCriteriaError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCriteria,
		Message:   "Invalid criteria",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewMandateNotFoundError(mandateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMandateNotFound,
		Message:   "Mandate not found",
		Details:   fmt.Sprintf("mandateId: %s", mandateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDataUnavailableError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataUnavailable,
		Message:   fmt.Sprintf("Data source '%s' unavailable", source),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, errDetails(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Elasticsearch index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCircuitOpenError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCircuitOpen,
		Message:   fmt.Sprintf("Circuit open for '%s'", operation),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewSignalPersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSignalPersistFailed,
		Message:   "Failed to append learning signal",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewMalformedSignalError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedSignal,
		Message:   "Malformed learning signal",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewWeightPersistFailedError(mandateID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWeightPersistFailed,
		Message:   "Failed to persist weight vector",
		Details:   fmt.Sprintf("mandateId: %s, error: %s", mandateID, errDetails(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewWeightVersionConflictError(mandateID string, expected int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeWeightVersionConflict,
		Message:   "Weight vector was updated concurrently",
		Details:   fmt.Sprintf("mandateId: %s, expectedVersion: %d", mandateID, expected),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewAggregationInProgressError(mandateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAggregationInProgress,
		Message:   "Weight aggregation already running for mandate",
		Details:   fmt.Sprintf("mandateId: %s", mandateID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewEventPublishFailedError(topic string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventPublishFailed,
		Message:   "Event publish failed",
		Details:   fmt.Sprintf("topic: %s, error: %s", topic, errDetails(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// AsStandardError finds a StandardError anywhere in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:          "INVALID_INPUT",
	ErrCodeInvalidCriteria:       "INVALID_CRITERIA",
	ErrCodeMandateNotFound:       "MANDATE_NOT_FOUND",
	ErrCodeDataUnavailable:       "DATA_UNAVAILABLE",
	ErrCodeQueryExecutionFailed:  "QUERY_EXECUTION_FAILED",
	ErrCodeIndexNotFound:         "INDEX_NOT_FOUND",
	ErrCodeCircuitOpen:           "DATA_UNAVAILABLE",
	ErrCodeSignalPersistFailed:   "SIGNAL_PERSIST_FAILED",
	ErrCodeMalformedSignal:       "MALFORMED_SIGNAL",
	ErrCodeWeightPersistFailed:   "WEIGHT_PERSIST_FAILED",
	ErrCodeWeightVersionConflict: "WEIGHT_VERSION_CONFLICT",
	ErrCodeAggregationInProgress: "AGGREGATION_IN_PROGRESS",
	ErrCodeEventPublishFailed:    "EVENT_PUBLISH_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDataUnavailable,
		ErrCodeQueryExecutionFailed,
		ErrCodeSignalPersistFailed,
		ErrCodeWeightPersistFailed,
		ErrCodeEventPublishFailed:
		return 3

	case ErrCodeWeightVersionConflict,
		ErrCodeAggregationInProgress,
		ErrCodeCircuitOpen:
		return 2

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CRITERIA") || strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "MALFORMED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "MANDATE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "WEIGHT") || strings.Contains(codeStr, "AGGREGATION"):
		return "WEIGHTS"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX") || strings.Contains(codeStr, "DATA") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "CIRCUIT"):
		return "DATA"
	case strings.Contains(codeStr, "SIGNAL"):
		return "SIGNALS"
	case strings.Contains(codeStr, "EVENT"):
		return "EVENTS"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the status used by the HTTP surface.
// Caller mistakes are 400, everything else is an upstream failure.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput,
		ErrCodeInvalidCriteria,
		ErrCodeMandateNotFound,
		ErrCodeMalformedSignal:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
