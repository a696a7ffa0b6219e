// Package errors provides the standardized error model shared by the gateway,
// the backend client and the enrollment flow.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Gateway classification codes.
const (
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeUnprocessable  ErrorCode = "UNPROCESSABLE_ENTITY"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeServerError    ErrorCode = "SERVER_ERROR"
	ErrCodeRequestFailed  ErrorCode = "REQUEST_FAILED"
	ErrCodeNoResponse     ErrorCode = "NO_RESPONSE"
	ErrCodeRequestInvalid ErrorCode = "REQUEST_INVALID"
	ErrCodeDecodeFailed   ErrorCode = "DECODE_FAILED"
)

// Enrollment and client-local codes.
const (
	ErrCodeValidationFailed          ErrorCode = "VALIDATION_FAILED"
	ErrCodePlanRequired              ErrorCode = "PLAN_REQUIRED"
	ErrCodePlanNotConfigured         ErrorCode = "PLAN_NOT_CONFIGURED"
	ErrCodeInvalidSuccessURL         ErrorCode = "INVALID_SUCCESS_URL"
	ErrCodePaymentVerificationFailed ErrorCode = "PAYMENT_VERIFICATION_FAILED"
	ErrCodePaymentCancelled          ErrorCode = "PAYMENT_CANCELLED"
	ErrCodeSubmissionInProgress      ErrorCode = "SUBMISSION_IN_PROGRESS"
	ErrCodeInvalidTransition         ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeStorageFailed             ErrorCode = "STORAGE_FAILED"
	ErrCodeNotAuthenticated          ErrorCode = "NOT_AUTHENTICATED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"httpStatus,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("StandardError[%s/%d]: %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying transport or storage error, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewHTTPError classifies a non-2xx response. message is the server-provided
// text and is kept verbatim; body is the raw response payload.
func NewHTTPError(status int, message, body string) *StandardError {
	code := CodeForStatus(status)
	if message == "" {
		message = http.StatusText(status)
	}
	return &StandardError{
		Code:       code,
		Message:    message,
		Details:    body,
		HTTPStatus: status,
		Retryable:  code == ErrCodeRateLimited || code == ErrCodeServerError,
		Timestamp:  time.Now().UTC(),
	}
}

// NewNoResponseError marks a request that never received a server response
// such as a network failure or the transport timeout.
func NewNoResponseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoResponse,
		Message:   "No response received from server",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRequestInvalidError is returned when a request cannot be built locally.
func NewRequestInvalidError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestInvalid,
		Message:   "Failed to build request",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDecodeError wraps a response body that did not match the expected shape.
func NewDecodeError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecodeFailed,
		Message:   "Unexpected response from server",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewValidationError creates a client-local validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Please correct the highlighted fields",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlanNotConfiguredError reports a plan identifier without a remote plan ID.
// The plan table is fixed, so this is a deployment problem.
func NewPlanNotConfiguredError(plan string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlanNotConfigured,
		Message:   "Membership plan is not available",
		Details:   fmt.Sprintf("plan: %s", plan),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidSuccessURLError is returned when a return URL carries none of the
// recognized payment parameters.
func NewInvalidSuccessURLError(rawQuery string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSuccessURL,
		Message:   "Invalid success URL",
		Details:   fmt.Sprintf("query: %q", rawQuery),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentVerificationFailedError wraps a failed verify-payment call.
func NewPaymentVerificationFailedError(err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodePaymentVerificationFailed,
		Message:   "Payment could not be verified",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	var se *StandardError
	if stderrors.As(err, &se) {
		e.HTTPStatus = se.HTTPStatus
		if se.Message != "" {
			e.Details = se.Message
		}
	}
	return e
}

// NewPaymentCancelledError reports a return through the provider's cancel URL.
func NewPaymentCancelledError() *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentCancelled,
		Message:   "Payment was cancelled",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionInProgressError guards against duplicate form submissions.
func NewSubmissionInProgressError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInProgress,
		Message:   "A submission is already in progress",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports a state machine misuse.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Action not allowed in the current enrollment state",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageError wraps a session store failure.
func NewStorageError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageFailed,
		Message:   "Local session storage error",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotAuthenticatedError is returned by operations that need a stored session.
func NewNotAuthenticatedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNotAuthenticated,
		Message:   "Not signed in",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification
// ==========================

// CodeForStatus maps an HTTP status to its gateway error class.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status == http.StatusUnprocessableEntity:
		return ErrCodeUnprocessable
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case status >= 500:
		return ErrCodeServerError
	default:
		return ErrCodeRequestFailed
	}
}

// As extracts a *StandardError from any error chain.
func As(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or the empty code.
func CodeOf(err error) ErrorCode {
	if se, ok := As(err); ok {
		return se.Code
	}
	return ""
}

// IsNoResponse reports whether err carries the "no response" marker.
func IsNoResponse(err error) bool {
	return CodeOf(err) == ErrCodeNoResponse
}

// IsUnauthorized reports whether err is a classified 401.
func IsUnauthorized(err error) bool {
	return CodeOf(err) == ErrCodeUnauthorized
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnauthorized || code == ErrCodeNotAuthenticated:
		return "AUTHENTICATION"
	case code == ErrCodeForbidden || code == ErrCodeNotFound || code == ErrCodeUnprocessable:
		return "CLIENT"
	case code == ErrCodeRateLimited || code == ErrCodeServerError:
		return "SERVER"
	case code == ErrCodeNoResponse:
		return "TRANSPORT"
	case strings.Contains(codeStr, "PAYMENT") || strings.Contains(codeStr, "SUCCESS_URL"):
		return "PAYMENT"
	case strings.Contains(codeStr, "PLAN") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
