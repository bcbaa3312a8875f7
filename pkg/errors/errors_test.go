package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	err := NewNotFoundError("producer")
	assert.Equal(t, "NOT_FOUND: producer not found", err.Error())
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
}

func TestWrapErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewUpstreamUnavailableError(cause, "media engine call failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UPSTREAM_UNAVAILABLE")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetAppErrorFromChain(t *testing.T) {
	inner := NewInvalidArgumentError("direction must be send or recv")
	wrapped := fmt.Errorf("create transport: %w", inner)

	appErr := GetAppError(wrapped)
	assert.NotNil(t, appErr)
	assert.Equal(t, ErrCodeInvalidArgument, appErr.Code)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeResourceExhausted, CodeOf(NewResourceExhaustedError("worker pool saturated")))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
}
