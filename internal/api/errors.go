package api

import (
	"errors"
	"net/http"

	"github.com/atelierhq/design-api/internal/service"
	"github.com/atelierhq/design-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Validation errors
	case errors.Is(err, service.ErrEmptyDescription),
		errors.Is(err, service.ErrUnknownCategory),
		errors.Is(err, service.ErrMissingImage),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrUnsupportedImageType):
		return http.StatusUnsupportedMediaType

	case errors.Is(err, service.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge

	// Not found errors
	case errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrBlobNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrAlreadyTerminal):
		return http.StatusConflict

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal
// details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrEmptyDescription):
		return "Description cannot be empty"

	case errors.Is(err, service.ErrUnknownCategory):
		return "Unknown design category"

	case errors.Is(err, service.ErrMissingImage):
		return "A reference image is required"

	case errors.Is(err, service.ErrUnsupportedImageType):
		return "Unsupported image type"

	case errors.Is(err, service.ErrImageTooLarge):
		return "Image exceeds the maximum allowed size"

	case errors.Is(err, service.ErrInvalidImage):
		return "Image could not be decoded"

	case errors.Is(err, store.ErrJobNotFound):
		return "Design job not found"

	case errors.Is(err, store.ErrBlobNotFound):
		return "Image not found"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, service.ErrEnqueueFailed):
		return "Failed to schedule design generation"

	default:
		return "An unexpected error occurred"
	}
}
