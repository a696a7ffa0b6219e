package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	messages []string
	fields   []map[string]interface{}
}

func (r *recordingLogger) Error(msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, msg)
	r.fields = append(r.fields, fields)
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusUnauthorized, ErrCodeUnauthorized},
		{http.StatusForbidden, ErrCodeForbidden},
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusUnprocessableEntity, ErrCodeUnprocessable},
		{http.StatusTooManyRequests, ErrCodeRateLimited},
		{http.StatusInternalServerError, ErrCodeServerError},
		{http.StatusBadGateway, ErrCodeServerError},
		{http.StatusServiceUnavailable, ErrCodeServerError},
		{http.StatusBadRequest, ErrCodeRequestFailed},
		{http.StatusConflict, ErrCodeRequestFailed},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, CodeForStatus(tt.status))
		})
	}
}

func TestNewHTTPError(t *testing.T) {
	t.Run("keeps server message verbatim", func(t *testing.T) {
		err := NewHTTPError(http.StatusUnprocessableEntity, "Email already registered", `{"message":"Email already registered"}`)
		assert.Equal(t, ErrCodeUnprocessable, err.Code)
		assert.Equal(t, "Email already registered", err.Message)
		assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
		assert.False(t, err.Retryable)
	})

	t.Run("falls back to status text", func(t *testing.T) {
		err := NewHTTPError(http.StatusServiceUnavailable, "", "")
		assert.Equal(t, "Service Unavailable", err.Message)
		assert.True(t, err.Retryable)
	})
}

func TestNoResponseMarker(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := fmt.Errorf("get profile: %w", NewNoResponseError(cause))

	assert.True(t, IsNoResponse(err))
	assert.False(t, IsUnauthorized(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "TRANSPORT", GetErrorCategory(CodeOf(err)))
}

func TestCodeOf_NonStandard(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestNewPaymentVerificationFailedError(t *testing.T) {
	cause := NewHTTPError(http.StatusBadRequest, "Subscription not active", "")
	err := NewPaymentVerificationFailedError(cause)

	assert.Equal(t, ErrCodePaymentVerificationFailed, err.Code)
	assert.Equal(t, "Subscription not active", err.Details)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "Payment could not be verified: Subscription not active", UserMessage(err))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AUTHENTICATION", GetErrorCategory(ErrCodeUnauthorized))
	assert.Equal(t, "CLIENT", GetErrorCategory(ErrCodeForbidden))
	assert.Equal(t, "SERVER", GetErrorCategory(ErrCodeRateLimited))
	assert.Equal(t, "PAYMENT", GetErrorCategory(ErrCodeInvalidSuccessURL))
	assert.Equal(t, "PAYMENT", GetErrorCategory(ErrCodePaymentCancelled))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodePlanRequired))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeStorageFailed))
}

func TestErrorHandler_Handle(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "no response gets connectivity message",
			err:  NewNoResponseError(stderrors.New("timeout")),
			want: "Unable to reach the server. Please check your connection and try again.",
		},
		{
			name: "forbidden passes server text through",
			err:  NewHTTPError(http.StatusForbidden, "Members only", ""),
			want: "Members only",
		},
		{
			name: "server error is generic",
			err:  NewHTTPError(http.StatusInternalServerError, "stack trace here", ""),
			want: "Something went wrong on our side. Please try again later.",
		},
		{
			name: "rate limit is generic",
			err:  NewHTTPError(http.StatusTooManyRequests, "slow down", ""),
			want: "Too many requests. Please wait a moment and try again.",
		},
		{
			name: "plain error uses its text",
			err:  stderrors.New("password: must contain a digit"),
			want: "password: must contain a digit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			h := NewErrorHandler(log)

			got := h.Handle(context.Background(), "test.op", tt.err)
			assert.Equal(t, tt.want, got)
			require.Len(t, log.fields, 1)
			assert.Equal(t, "test.op", log.fields[0]["operation"])
		})
	}

	t.Run("nil error is silent", func(t *testing.T) {
		log := &recordingLogger{}
		assert.Empty(t, NewErrorHandler(log).Handle(context.Background(), "noop", nil))
		assert.Empty(t, log.messages)
	})
}
