// Package qwen implements the generation.Generator interface against
// the DashScope text generation API.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atelierhq/design-api/internal/config"
	"github.com/atelierhq/design-api/internal/generation"
)

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	defaultModel   = "qwen-plus"

	generationPath = "/services/aigc/text-generation/generation"
)

// Generator calls the DashScope API once per work item. Retry policy
// lives with the caller; a failed call here simply fails the delivery.
type Generator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generationRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []chatMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		ResultFormat string `json:"result_format"`
	} `json:"parameters"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewGenerator creates a DashScope-backed generator.
func NewGenerator(cfg config.GeneratorConfig, logger *slog.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", generation.ErrInvalidConfig)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.ModelName)
	if model == "" {
		model = defaultModel
	}

	return &Generator{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		// Per-call deadlines come from the caller's context; the client
		// timeout is only a backstop.
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds+30) * time.Second},
		logger:     logger.With(slog.String("component", "qwen_generator")),
	}, nil
}

// GenerateSpec implements generation.Generator.
func (g *Generator) GenerateSpec(ctx context.Context, description, category, imageRef string) (json.RawMessage, error) {
	payload := generationRequest{Model: g.model}
	payload.Input.Messages = []chatMessage{
		{Role: "user", Content: generation.BuildPrompt(description, category)},
	}
	payload.Parameters.ResultFormat = "message"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+generationPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", generation.ErrGenerationTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", generation.ErrGenerationFailed, err)
	}

	var parsed generationResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}

	if resp.StatusCode >= 300 || parsed.Code != "" {
		g.logger.Warn("generation request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("code", parsed.Code),
			slog.String("request_id", parsed.RequestID))
		return nil, fmt.Errorf("%w: status %d code %q: %s",
			generation.ErrGenerationFailed, resp.StatusCode, parsed.Code, parsed.Message)
	}

	if len(parsed.Output.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contained no choices", generation.ErrInvalidResponse)
	}

	spec, err := generation.ParseSpecJSON(parsed.Output.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("generated design spec",
		slog.String("request_id", parsed.RequestID),
		slog.Int("spec_bytes", len(spec)))
	return spec, nil
}
