package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/BaSui01/agentswarm/types"
)

// NewError builds a provider error tagged with the provider name.
func NewError(code types.ErrorCode, message, provider string) *types.Error {
	return types.NewError(code, message).WithProvider(provider)
}

// ErrorFromStatus maps an HTTP status code to a structured error.
func ErrorFromStatus(status int, message, provider string) *types.Error {
	var e *types.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = NewError(types.ErrUnauthorized, message, provider)
	case status == http.StatusTooManyRequests:
		e = NewError(types.ErrRateLimited, message, provider).WithRetryable(true)
	case status == http.StatusNotFound:
		e = NewError(types.ErrModelNotFound, message, provider)
	case status == http.StatusBadRequest:
		e = NewError(types.ErrInvalidRequest, message, provider)
	case status == http.StatusServiceUnavailable:
		e = NewError(types.ErrServiceUnavailable, message, provider).WithRetryable(true)
	case status == http.StatusGatewayTimeout:
		e = NewError(types.ErrUpstreamTimeout, message, provider).WithRetryable(true)
	case status >= 500:
		e = NewError(types.ErrUpstreamError, message, provider).WithRetryable(true)
	default:
		e = NewError(types.ErrUpstreamError, message, provider)
	}
	return e.WithHTTPStatus(status)
}

// ErrorFromContext converts context cancellation into a structured error, or
// returns nil when err is not a context error.
func ErrorFromContext(err error, provider string) *types.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(types.ErrUpstreamTimeout, "request timed out", provider).
			WithCause(err).WithRetryable(true)
	case errors.Is(err, context.Canceled):
		return NewError(types.ErrInternalError, "request canceled", provider).WithCause(err)
	}
	return nil
}
