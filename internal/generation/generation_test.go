package generation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("blue summer dress", "dress")

	assert.Contains(t, prompt, "blue summer dress")
	assert.Contains(t, prompt, "dress")
	assert.Contains(t, prompt, `"style"`)
	assert.Contains(t, prompt, `"colors"`)
}

func TestParseSpecJSON(t *testing.T) {
	t.Run("accepts a bare JSON object", func(t *testing.T) {
		spec, err := ParseSpecJSON(`{"style":"casual","colors":["blue","white"]}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"style":"casual","colors":["blue","white"]}`, string(spec))
	})

	t.Run("extracts JSON from markdown fences", func(t *testing.T) {
		raw := "```json\n{\"style\":\"casual\",\"colors\":[\"blue\"]}\n```"
		spec, err := ParseSpecJSON(raw)
		require.NoError(t, err)
		assert.JSONEq(t, `{"style":"casual","colors":["blue"]}`, string(spec))
	})

	t.Run("extracts JSON surrounded by prose", func(t *testing.T) {
		raw := "Here is the design spec: {\"style\":\"formal\",\"colors\":[\"black\"],\"details\":\"slim fit\"} Hope it helps."
		spec, err := ParseSpecJSON(raw)
		require.NoError(t, err)

		var parsed struct {
			Style string `json:"style"`
		}
		require.NoError(t, json.Unmarshal(spec, &parsed))
		assert.Equal(t, "formal", parsed.Style)
	})

	t.Run("rejects output with no JSON object", func(t *testing.T) {
		_, err := ParseSpecJSON("sorry, I cannot help with that")
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := ParseSpecJSON(`{"style": "casual", "colors": [}`)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})
}
