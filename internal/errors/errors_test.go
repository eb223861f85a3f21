package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	t.Run("Error returns message", func(t *testing.T) {
		err := New(http.StatusBadRequest, "INVALID_REQUEST", "bad payload")
		assert.Equal(t, "bad payload", err.Error())
	})

	t.Run("NewWithDetails carries details", func(t *testing.T) {
		err := NewWithDetails(http.StatusNotFound, "MODEL_NOT_FOUND", "missing", "run-42")
		assert.Equal(t, "run-42", err.Details)
		assert.Equal(t, http.StatusNotFound, err.StatusCode)
	})
}

func TestInvalidInputError(t *testing.T) {
	messages := []string{
		"Missing ranked features: Level",
		"Invalid value for numerical feature 'YearsOfExperience': 'abc'",
	}
	err := InvalidInputError(messages)

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "INVALID_INPUT", err.ErrorCode)
	assert.Equal(t, messages, err.Details)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ModelNotFoundError("abc", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "MODEL_NOT_FOUND", resp.Error.ErrorCode)
}

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		contains string
	}{
		{
			name:     "configuration error",
			err:      NewConfigurationError("metric test-quantile-mean not found", nil),
			wantType: ErrTypeConfig,
			contains: "[CONFIG]",
		},
		{
			name:     "invalid input accumulates messages",
			err:      NewInvalidInputError([]string{"one", "two"}),
			wantType: ErrTypeValidation,
			contains: "one; two",
		},
		{
			name:     "batch timeout names the item",
			err:      NewBatchTimeoutError(3),
			wantType: ErrTypeTimeout,
			contains: "item 3",
		},
		{
			name:     "not completed names the item",
			err:      NewNotCompletedError(7),
			wantType: ErrTypeTimeout,
			contains: "not completed for item 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.True(t, IsType(tt.err, tt.wantType))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("failed to save bundle", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")

	wrapped := fmt.Errorf("outer: %w", err)
	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}
