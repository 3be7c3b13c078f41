package generation

import (
	"context"
	"encoding/json"
)

// Generator defines the interface for producing a design spec from a
// submission. This interface serves as a boundary between the application
// core and the external AI/LLM service: implementations wrap an opaque,
// slow, potentially-unavailable model and translate every outcome into
// either a spec or a typed error from this package. No retries happen
// behind this boundary; retry policy belongs to the caller.
type Generator interface {
	// GenerateSpec creates a structured design spec for the given free-text
	// description and garment category. imageRef identifies the stored
	// reference image for backends that can consume it. The returned spec
	// is opaque, well-formed JSON whose internal schema is owned by the
	// external generator.
	//
	// The context carries the caller's deadline; when it expires the
	// implementation returns ErrGenerationTimeout.
	GenerateSpec(
		ctx context.Context,
		description string,
		category string,
		imageRef string,
	) (json.RawMessage, error)
}
