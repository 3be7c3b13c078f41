package mocks

import (
	"context"
	"encoding/json"
	"sync"
)

// MockGenerator implements generation.Generator for testing.
type MockGenerator struct {
	// GenerateSpecFn allows test cases to mock the GenerateSpec behavior
	GenerateSpecFn func(ctx context.Context, description, category, imageRef string) (json.RawMessage, error)

	// Default response values
	Spec json.RawMessage
	Err  error

	// Call tracking for verification
	GenerateSpecCalls struct {
		mu sync.Mutex

		// Count tracks how many times GenerateSpec was called
		Count int

		// Descriptions contains all descriptions passed to GenerateSpec calls
		Descriptions []string

		// Categories contains all categories passed to GenerateSpec calls
		Categories []string

		// ImageRefs contains all image refs passed to GenerateSpec calls
		ImageRefs []string
	}
}

// GenerateSpec implements the generation.Generator interface.
func (m *MockGenerator) GenerateSpec(ctx context.Context, description, category, imageRef string) (json.RawMessage, error) {
	m.GenerateSpecCalls.mu.Lock()
	m.GenerateSpecCalls.Count++
	m.GenerateSpecCalls.Descriptions = append(m.GenerateSpecCalls.Descriptions, description)
	m.GenerateSpecCalls.Categories = append(m.GenerateSpecCalls.Categories, category)
	m.GenerateSpecCalls.ImageRefs = append(m.GenerateSpecCalls.ImageRefs, imageRef)
	m.GenerateSpecCalls.mu.Unlock()

	if m.GenerateSpecFn != nil {
		return m.GenerateSpecFn(ctx, description, category, imageRef)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Spec != nil {
		return m.Spec, nil
	}
	return json.RawMessage(`{"style":"mock","colors":["black"],"details":"mock spec"}`), nil
}

// CallCount returns how many times GenerateSpec was called.
func (m *MockGenerator) CallCount() int {
	m.GenerateSpecCalls.mu.Lock()
	defer m.GenerateSpecCalls.mu.Unlock()
	return m.GenerateSpecCalls.Count
}
