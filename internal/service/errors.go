package service

import "errors"

var (
	// ErrEmptyDescription indicates a submission without a usable
	// description after trimming whitespace.
	ErrEmptyDescription = errors.New("description cannot be empty")

	// ErrUnknownCategory indicates a category outside the configured
	// enumeration.
	ErrUnknownCategory = errors.New("unknown design category")

	// ErrMissingImage indicates a submission without a reference image.
	ErrMissingImage = errors.New("reference image is required")

	// ErrUnsupportedImageType indicates an upload whose declared content
	// type is outside the allow-list. Checked before any bytes are
	// persisted.
	ErrUnsupportedImageType = errors.New("unsupported image content type")

	// ErrImageTooLarge indicates an upload exceeding the configured size
	// limit.
	ErrImageTooLarge = errors.New("image exceeds maximum allowed size")

	// ErrInvalidImage indicates bytes that do not decode as the declared
	// image type.
	ErrInvalidImage = errors.New("image data could not be decoded")

	// ErrEnqueueFailed indicates the job row was created but the work
	// item could not be scheduled. The job is force-failed rather than
	// left processing forever.
	ErrEnqueueFailed = errors.New("failed to enqueue generation work")
)
