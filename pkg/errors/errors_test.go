package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_MessageIncludesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewExternalError("geocoder unavailable", cause)

	assert.Equal(t, "EXTERNAL: geocoder unavailable: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("lookup trial: %w", NewNotFoundError("trial NCT0000 not found"))

	assert.Equal(t, ErrorTypeNotFound, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeValidation, TypeOf(NewValidationError("bad input")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))
}
