package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrRevisionConflict = errors.New("revision conflict")
	ErrSlugTaken        = errors.New("slug already taken")
	ErrStore            = errors.New("document store failure")
)

func NewNotFound(entity string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusNotFound,
		err:        fmt.Errorf("%s %w", entity, ErrNotFound),
	}
}

// NewRevisionConflictError reports that the revision supplied with a write
// is no longer the stored one.
func NewRevisionConflictError(entity, id string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusConflict,
		err:        ErrRevisionConflict,
		Details:    fmt.Sprintf("%s %s was modified by another writer; fetch it again and retry", entity, id),
		Field:      "revision",
	}
}

func NewSlugTakenError(slug string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusConflict,
		err:        ErrSlugTaken,
		Details:    fmt.Sprintf("slug %q is already in use", slug),
		Field:      "slug",
	}
}

// NewStoreError wraps any store failure that is not a not-found or a conflict.
func NewStoreError(operation, entity string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadGateway,
		err:        ErrStore,
		Details:    fmt.Sprintf("Failed to %s %s", operation, entity),
		Cause:      cause,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsRevisionConflict(err error) bool {
	return errors.Is(err, ErrRevisionConflict)
}

func IsSlugTaken(err error) bool {
	return errors.Is(err, ErrSlugTaken)
}

func IsStoreError(err error) bool {
	return errors.Is(err, ErrStore)
}
