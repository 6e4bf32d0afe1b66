package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("loading facility: %w", NewNotFoundError("facility vha_1 not found"))

	assert.Equal(t, ErrorTypeNotFound, TypeOf(err))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
}

func TestTypeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewInternalError("failed to save overlay", fmt.Errorf("connection refused"))

	assert.Equal(t, "INTERNAL: failed to save overlay: connection refused", err.Error())
	assert.EqualError(t, err.Unwrap(), "connection refused")
}
