// Package errors provides standardized error handling for BPMN workflow integration.
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

const (
	ErrCodeDatasetUnavailable        ErrorCode = "DATASET_UNAVAILABLE"
	ErrCodeModelArtifactsUnavailable ErrorCode = "MODEL_ARTIFACTS_UNAVAILABLE"
	ErrCodePredictionFailed          ErrorCode = "PREDICTION_FAILED"
	ErrCodeStudentNotFound           ErrorCode = "STUDENT_NOT_FOUND"
	ErrCodeNoStudentsSelected        ErrorCode = "NO_STUDENTS_SELECTED"

	ErrCodeChannelConfigIncomplete ErrorCode = "CHANNEL_CONFIG_INCOMPLETE"
	ErrCodeChannelDeliveryFailed   ErrorCode = "CHANNEL_DELIVERY_FAILED"

	ErrCodeSchedulePersistFailed ErrorCode = "SCHEDULE_PERSIST_FAILED"

	ErrCodeCacheUnavailable   ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeIndexingFailed     ErrorCode = "INDEXING_FAILED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"

	ErrCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// WithMetadata attaches a key to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// As finds the first StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, retryable bool, cause error) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewDatasetUnavailableError is fatal: nothing can be scored without data.
func NewDatasetUnavailableError(err error) *StandardError {
	return newError(ErrCodeDatasetUnavailable, "Student dataset could not be loaded", false, err)
}

// NewModelArtifactsUnavailableError is fatal at startup.
func NewModelArtifactsUnavailableError(err error) *StandardError {
	return newError(ErrCodeModelArtifactsUnavailable, "Model artifacts could not be loaded", false, err)
}

// NewPredictionFailedError reports a scoring pass that produced no usable result.
func NewPredictionFailedError(err error) *StandardError {
	return newError(ErrCodePredictionFailed, "Risk prediction failed", false, err)
}

func NewStudentNotFoundError(studentID string) *StandardError {
	e := newError(ErrCodeStudentNotFound, "Student not found in scored population", false, nil)
	e.Details = fmt.Sprintf("studentId: %s", studentID)
	return e
}

func NewNoStudentsSelectedError(details string) *StandardError {
	e := newError(ErrCodeNoStudentsSelected, "No at-risk student matches the selection", false, nil)
	e.Details = details
	return e
}

// NewChannelConfigIncompleteError is reported per channel; it never blocks other channels.
func NewChannelConfigIncompleteError(channel string) *StandardError {
	e := newError(ErrCodeChannelConfigIncomplete, "Channel configuration incomplete", false, nil)
	e.Details = fmt.Sprintf("channel: %s", channel)
	return e
}

// NewChannelDeliveryFailedError is raised when every requested channel failed.
func NewChannelDeliveryFailedError(details string) *StandardError {
	e := newError(ErrCodeChannelDeliveryFailed, "Alert delivery failed on every channel", true, nil)
	e.Details = details
	return e
}

func NewSchedulePersistFailedError(err error) *StandardError {
	return newError(ErrCodeSchedulePersistFailed, "Alert schedule could not be saved", true, err)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Prediction cache unavailable", true, err)
}

func NewIndexingFailedError(err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Assessment indexing failed", true, err)
}

func NewValidationError(details string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Input validation failed", false, nil)
	e.Details = details
	return e
}

func NewInputParsingError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Job variables could not be parsed", false, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", false, err)
}

// NewEngineUnavailableError wraps a workflow engine call that could not complete.
func NewEngineUnavailableError(operation string, retryable bool, err error) *StandardError {
	e := newError(ErrCodeEngineUnavailable, "Workflow engine call failed", retryable, err)
	return e.WithMetadata("operation", operation)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the codes BPMN boundary
// events catch. Codes missing here are passed through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeDatasetUnavailable:        "DATASET_UNAVAILABLE",
	ErrCodeModelArtifactsUnavailable: "MODEL_ARTIFACTS_UNAVAILABLE",
	ErrCodePredictionFailed:          "PREDICTION_FAILED",
	ErrCodeStudentNotFound:           "STUDENT_NOT_FOUND",
	ErrCodeNoStudentsSelected:        "NO_STUDENTS_SELECTED",
	ErrCodeChannelConfigIncomplete:   "CHANNEL_CONFIG_INCOMPLETE",
	ErrCodeChannelDeliveryFailed:     "ALERT_DELIVERY_FAILED",
	ErrCodeSchedulePersistFailed:     "SCHEDULE_PERSIST_FAILED",
	ErrCodeValidationFailed:          "VALIDATION_FAILED",
	ErrCodeInputParsingFailed:        "VALIDATION_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSchedulePersistFailed,
		ErrCodeCacheUnavailable,
		ErrCodeEngineUnavailable,
		ErrCodeIndexingFailed:
		return 3
	case ErrCodeChannelDeliveryFailed:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATASET") || strings.Contains(codeStr, "MODEL") ||
		strings.Contains(codeStr, "PREDICTION") || strings.Contains(codeStr, "STUDENT"):
		return "SCORING"
	case strings.Contains(codeStr, "CHANNEL"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "SCHEDULE"):
		return "SCHEDULE"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "INDEX"):
		return "STORAGE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ENGINE"):
		return "ENGINE"
	default:
		return "OTHER"
	}
}
