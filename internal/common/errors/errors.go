// Package errors provides the typed error taxonomy shared by the lifecycle core
// and its Zeebe job workers.
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

// Caller-recoverable lifecycle errors
const (
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeTerminalState     ErrorCode = "TERMINAL_STATE"
)

// Infrastructure / collaborator errors
const (
	ErrCodeStoreFailed           ErrorCode = "STORE_FAILED"
	ErrCodeDeliveryFailed        ErrorCode = "DELIVERY_FAILED"
	ErrCodeTextGenerationTimeout ErrorCode = "TEXT_GENERATION_TIMEOUT"
	ErrCodeTextGenerationFailed  ErrorCode = "TEXT_GENERATION_FAILED"
	ErrCodeExternalService       ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout               ErrorCode = "TIMEOUT"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError with the same code, so the sentinels below
// work with errors.Is through %w wrapping.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &StandardError{Code: ErrCodeValidation}
	ErrNotFound          = &StandardError{Code: ErrCodeNotFound}
	ErrInvalidTransition = &StandardError{Code: ErrCodeInvalidTransition}
	ErrTerminalState     = &StandardError{Code: ErrCodeTerminalState}
	ErrStoreFailed       = &StandardError{Code: ErrCodeStoreFailed}
)

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

// NewValidationError reports malformed caller input.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports an unknown request or worker identity.
func NewNotFoundError(kind, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		Details:   fmt.Sprintf("%s: %s", kind, id),
		Retryable: false,
		Metadata:  map[string]interface{}{"kind": kind, "id": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports a status change outside the transition table.
func NewInvalidTransitionError(code string, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Status transition not permitted",
		Details:   fmt.Sprintf("request %s: %s -> %s", code, from, to),
		Retryable: false,
		Metadata:  map[string]interface{}{"from": from, "to": to},
		Timestamp: time.Now().UTC(),
	}
}

// NewTerminalStateError reports a mutation attempted on a Completed/Canceled request.
func NewTerminalStateError(code, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTerminalState,
		Message:   "Request is in a terminal state",
		Details:   fmt.Sprintf("request %s is %s", code, status),
		Retryable: false,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreFailedError wraps a persistence failure; retryable.
func NewStoreFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreFailed,
		Message:   "Persistence operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError wraps a delivery channel failure.
func NewDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTextGenerationTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeTextGenerationTimeout,
		Message:   "Text generation timed out",
		Details:   fmt.Sprintf("exceeded %s", timeout),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewTextGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTextGenerationFailed,
		Message:   "Text generation API error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalServiceError wraps a failing dependency such as the Zeebe gateway.
func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("%s unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"service": service},
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("%s timed out", service),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"service": service},
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes BPMN
// boundary events catch on.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidation:        "SERVICE_REQUEST_INVALID",
	ErrCodeNotFound:          "SERVICE_REQUEST_NOT_FOUND",
	ErrCodeInvalidTransition: "SERVICE_REQUEST_INVALID_TRANSITION",
	ErrCodeTerminalState:     "SERVICE_REQUEST_CLOSED",
	ErrCodeStoreFailed:       "SERVICE_REQUEST_STORE_FAILED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreFailed, ErrCodeDeliveryFailed, ErrCodeExternalService, ErrCodeTimeout:
		return 3
	case ErrCodeInternal:
		return 1
	default:
		return 0 // business errors: no retry
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

// ==========================
// 5. Utility Functions
// ==========================

// CodeOf extracts the code of a StandardError anywhere in err's chain.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsCallerError reports whether err is one of the four caller-recoverable codes.
func IsCallerError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeValidation, ErrCodeNotFound, ErrCodeInvalidTransition, ErrCodeTerminalState:
		return true
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "TERMINAL"):
		return "LIFECYCLE"
	case strings.Contains(codeStr, "STORE"):
		return "DATABASE"
	case strings.Contains(codeStr, "DELIVERY"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "TEXT_GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "TIMEOUT"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "NOT_FOUND"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
