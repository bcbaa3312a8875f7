package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies application errors for callers and the wire.
type ErrorCode string

const (
	ErrCodeNotFound                 ErrorCode = "NOT_FOUND"
	ErrCodeInvalidArgument          ErrorCode = "INVALID_ARGUMENT"
	ErrCodeIncompatibleCapabilities ErrorCode = "INCOMPATIBLE_CAPABILITIES"
	ErrCodeResourceExhausted        ErrorCode = "RESOURCE_EXHAUSTED"
	ErrCodeUpstreamUnavailable      ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeUnauthorized             ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code and optional cause through the call chain.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// WrapError attaches a code to an existing error.
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: err}
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewInvalidArgumentError(message string) *AppError {
	return NewAppError(ErrCodeInvalidArgument, message, http.StatusBadRequest)
}

func NewIncompatibleCapabilitiesError(message string) *AppError {
	return NewAppError(ErrCodeIncompatibleCapabilities, message, http.StatusUnprocessableEntity)
}

func NewResourceExhaustedError(message string) *AppError {
	return NewAppError(ErrCodeResourceExhausted, message, http.StatusServiceUnavailable)
}

func NewUpstreamUnavailableError(err error, message string) *AppError {
	return WrapError(err, ErrCodeUpstreamUnavailable, message, http.StatusBadGateway)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// GetAppError extracts an AppError from anywhere in the error chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// CodeOf reports the code of err, or INTERNAL_ERROR for uncoded errors.
func CodeOf(err error) ErrorCode {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ErrCodeInternal
}
