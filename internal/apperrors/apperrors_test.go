package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sol1corejz/imgify/internal/models"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{err: Validation("no_files_provided", "No images provided."), want: http.StatusUnprocessableEntity},
		{err: RateLimited("quota_exceeded", "Daily limit exceeded.", time.Hour, nil), want: http.StatusTooManyRequests},
		{err: Auth("invalid_credentials", "invalid credentials"), want: http.StatusUnauthorized},
		{err: TooLarge(1024), want: http.StatusRequestEntityTooLarge},
		{err: Internal("submission_failed", errors.New("boom")), want: http.StatusInternalServerError},
		{err: &Error{Kind: KindTransform}, want: http.StatusUnprocessableEntity},
		{err: &Error{Kind: "unknown"}, want: http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(string(test.err.Kind), func(t *testing.T) {
			assert.Equal(t, test.want, test.err.Status())
		})
	}
}

func TestAsThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("handle batch: %w", Internal("rate_limit_unavailable", cause))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindInternal, appErr.Kind)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "internal server error", appErr.Message)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestValidationDetails(t *testing.T) {
	err := Validation("no_valid_images", "None of the uploaded files can be processed.",
		models.FieldError{Filename: "font.ttf", Reason: "unsupported_type"})
	require.Len(t, err.Details, 1)
	assert.Equal(t, "validation_error: no_valid_images", err.Error())
}
