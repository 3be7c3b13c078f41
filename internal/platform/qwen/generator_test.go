package qwen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/design-api/internal/config"
	"github.com/atelierhq/design-api/internal/generation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gen, err := NewGenerator(config.GeneratorConfig{
		APIKey:         "test-key",
		BaseURL:        server.URL,
		ModelName:      "qwen-plus",
		TimeoutSeconds: 5,
	}, testLogger())
	require.NoError(t, err)
	return gen
}

func messageResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"output": map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		},
		"request_id": "req-123",
	})
	return string(body)
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator(config.GeneratorConfig{}, testLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateSpec(t *testing.T) {
	t.Parallel()

	spec := `{"style":"streetwear","colors":["black","neon green"],"details":"oversized fit"}`
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req generationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-plus", req.Model)
		assert.Equal(t, "message", req.Parameters.ResultFormat)
		require.NotEmpty(t, req.Input.Messages)
		assert.Contains(t, req.Input.Messages[0].Content, "cropped bomber jacket")

		fmt.Fprint(w, messageResponse("Here is the design:\n```json\n"+spec+"\n```"))
	})

	got, err := gen.GenerateSpec(context.Background(), "cropped bomber jacket", "jacket", "")
	require.NoError(t, err)
	assert.JSONEq(t, spec, string(got))
}

func TestGenerateSpecAPIError(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":"InvalidParameter","message":"bad model","request_id":"req-456"}`)
	})

	_, err := gen.GenerateSpec(context.Background(), "a dress", "dress", "")
	assert.ErrorIs(t, err, generation.ErrGenerationFailed)
}

func TestGenerateSpecTimeout(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := gen.GenerateSpec(ctx, "a dress", "dress", "")
	assert.ErrorIs(t, err, generation.ErrGenerationTimeout)
}

func TestGenerateSpecInvalidResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>gateway error</html>"},
		{"no choices", `{"output":{"choices":[]},"request_id":"req-789"}`},
		{"no spec in content", messageResponse("I cannot help with that.")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			})

			_, err := gen.GenerateSpec(context.Background(), "a dress", "dress", "")
			assert.ErrorIs(t, err, generation.ErrInvalidResponse)
		})
	}
}
