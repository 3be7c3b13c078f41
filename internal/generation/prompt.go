package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// promptFormat asks the model for exactly the JSON object the rest of the
// system stores. Shared by all generator backends so they produce the same
// spec shape.
const promptFormat = `You are a fashion design assistant. Generate a garment design spec for the following request:
- Requirement: %s
- Garment category: %s

Respond with a single JSON object containing "style" (string), "colors" (list of strings), and "details" (string). Respond with JSON only, no surrounding text.`

// BuildPrompt renders the generation prompt for a submission.
func BuildPrompt(description, category string) string {
	return fmt.Sprintf(promptFormat, description, category)
}

// ParseSpecJSON extracts the design spec from raw model output. Models often
// wrap JSON in markdown fences or prose, so it locates the outermost JSON
// object and checks it is well formed. The spec's internal schema is not
// validated beyond that.
// Returns ErrInvalidResponse when no well-formed object can be found.
func ParseSpecJSON(raw string) (json.RawMessage, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", ErrInvalidResponse)
	}

	candidate := []byte(raw[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("%w: malformed JSON in model output", ErrInvalidResponse)
	}

	return json.RawMessage(candidate), nil
}
