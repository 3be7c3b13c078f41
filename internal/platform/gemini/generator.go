// Package gemini implements the generation.Generator interface against
// the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/atelierhq/design-api/internal/config"
	"github.com/atelierhq/design-api/internal/generation"
)

const defaultModel = "gemini-2.0-flash"

// Generator calls the Gemini API once per work item.
type Generator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGenerator creates a Gemini-backed generator.
func NewGenerator(ctx context.Context, cfg config.GeneratorConfig, logger *slog.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", generation.ErrInvalidConfig)
	}

	model := strings.TrimSpace(cfg.ModelName)
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Generator{
		client: client,
		model:  model,
		logger: logger.With(slog.String("component", "gemini_generator")),
	}, nil
}

// GenerateSpec implements generation.Generator.
func (g *Generator) GenerateSpec(ctx context.Context, description, category, imageRef string) (json.RawMessage, error) {
	prompt := generation.BuildPrompt(description, category)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", generation.ErrGenerationTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	spec, err := generation.ParseSpecJSON(text)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("generated design spec", slog.Int("spec_bytes", len(spec)))
	return spec, nil
}
