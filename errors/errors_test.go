package errors

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHint(t *testing.T) {
	err := New("error")
	withHint := WithHint(err, "run factgate config init")

	hints := GetAllHints(withHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "run factgate config init", hints[0])
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is success", nil, ExitOK},
		{"plain error is internal", New("boom"), ExitInternal},
		{"invalid request sentinel", ErrInvalidRequest, ExitValidation},
		{"formatted invalid request", NewInvalidRequestError("bad schema %s", "x.yaml"), ExitValidation},
		{"wrapped invalid request", Wrap(NewInvalidRequestError("bad"), "promote"), ExitValidation},
		{"marked os error", WrapInvalidRequest(os.ErrNotExist, "open input"), ExitValidation},
		{"not found is internal", NewNotFoundError("entity %s", "x"), ExitInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestWrapInvalidRequest_PreservesCause(t *testing.T) {
	err := WrapInvalidRequest(os.ErrNotExist, "read schema")

	assert.True(t, Is(err, os.ErrNotExist))
	assert.True(t, IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), "read schema")
	assert.Nil(t, WrapInvalidRequest(nil, "nothing"))
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(NewNotFoundError("canonical %s", "abc")))
	assert.False(t, IsNotFoundError(New("other")))
	assert.False(t, IsNotFoundError(nil))
}
