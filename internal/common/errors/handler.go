// internal/common/errors/handler.go
package errors

import (
	"context"
	"strings"
)

// ErrorHandler turns errors from backend call sites into user-visible
// notification text. It never renders anything itself.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err for operation op and returns the toast message to show.
func (h *ErrorHandler) Handle(_ context.Context, op string, err error) string {
	if err == nil {
		return ""
	}
	stdErr := normalizeError(err)
	msg := UserMessage(stdErr)

	if h.logger != nil {
		h.logger.Error("Operation failed", map[string]interface{}{
			"operation":     op,
			"errorCode":     string(stdErr.Code),
			"httpStatus":    stdErr.HTTPStatus,
			"message":       stdErr.Message,
			"details":       stdErr.Details,
			"retryable":     stdErr.Retryable,
			"errorCategory": GetErrorCategory(stdErr.Code),
		})
	}
	return msg
}

// UserMessage maps an error to the text shown to the member.
// 403/404/422 messages are passed through verbatim from the server.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr := normalizeError(err)
	switch stdErr.Code {
	case ErrCodeNoResponse:
		return "Unable to reach the server. Please check your connection and try again."
	case ErrCodeUnauthorized:
		return "Your session has expired. Please log in again."
	case ErrCodeRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case ErrCodeServerError:
		return "Something went wrong on our side. Please try again later."
	case ErrCodeForbidden, ErrCodeNotFound, ErrCodeUnprocessable, ErrCodeRequestFailed:
		if strings.TrimSpace(stdErr.Message) != "" {
			return stdErr.Message
		}
		return "The request could not be completed."
	case ErrCodePaymentVerificationFailed:
		if stdErr.Details != "" {
			return stdErr.Message + ": " + stdErr.Details
		}
		return stdErr.Message
	default:
		if stdErr.Message != "" {
			return stdErr.Message
		}
		return "Unexpected error"
	}
}

// normalizeError ensures we always have a StandardError
func normalizeError(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	// Non-standard errors (for example a *ValidationResult) carry their own text.
	return &StandardError{
		Code:    "INTERNAL_ERROR",
		Message: err.Error(),
		cause:   err,
	}
}
