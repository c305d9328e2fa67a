package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreErrorKeepsCauseReachable(t *testing.T) {
	err := NewStoreError("get", "post", context.DeadlineExceeded)

	assert.True(t, IsStoreError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsRevisionConflict(err))
	assert.Equal(t, http.StatusBadGateway, err.StatusCode)
	assert.Contains(t, err.GetFullError(), "context deadline exceeded")
}

func TestKindsAreDistinguishable(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidationError("title", "required"), IsValidation},
		{"missing field", NewMissingRequiredFieldError("content"), IsValidation},
		{"invalid input", NewInvalidInputError("slug", "empty"), IsInvalidInput},
		{"not found", NewNotFound("post"), IsNotFound},
		{"slug taken", NewSlugTakenError("hello"), IsSlugTaken},
		{"revision conflict", NewRevisionConflictError("post", "abc"), IsRevisionConflict},
		{"store", NewStoreError("put", "post", errors.New("boom")), IsStoreError},
		{"forbidden", NewForbiddenError("nope"), IsForbidden},
		{"unauthorized", NewMissingTokenError(), IsUnauthorized},
	}

	checks := []func(error) bool{IsValidation, IsNotFound, IsSlugTaken, IsRevisionConflict, IsStoreError, IsForbidden, IsUnauthorized}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			matched := 0
			for _, c := range checks {
				if c(tt.err) {
					matched++
				}
			}
			assert.Equal(t, 1, matched, "exactly one kind should match")
		})
	}
}

func TestWrappedApiErrStillMatches(t *testing.T) {
	err := fmt.Errorf("update post: %w", NewRevisionConflictError("post", "abc"))

	var apiErr *ApiErr
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.True(t, IsRevisionConflict(err))
}

func TestRequestErrorsExposeField(t *testing.T) {
	malformed := NewMalformedPayloadError("post", errors.New("unexpected EOF"))
	assert.True(t, IsMalformedPayloadError(malformed))
	assert.False(t, IsValidation(malformed))
	assert.Equal(t, "payload", malformed.Field)

	bad := NewBadRequestError("authorization code missing")
	assert.True(t, IsBadRequest(bad))
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Contains(t, bad.Error(), "authorization code missing")
}
