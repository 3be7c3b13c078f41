package generation

import "errors"

// Common errors returned by generator implementations.
var (
	// ErrGenerationFailed is returned when spec generation fails for any
	// general reason.
	ErrGenerationFailed = errors.New("failed to generate design spec")

	// ErrGenerationTimeout is returned when the generator did not respond
	// within the caller's deadline.
	ErrGenerationTimeout = errors.New("design spec generation timed out")

	// ErrInvalidResponse is returned when the model response cannot be
	// parsed into well-formed structured data.
	ErrInvalidResponse = errors.New("invalid response from design generator")

	// ErrInvalidConfig is returned when the generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
