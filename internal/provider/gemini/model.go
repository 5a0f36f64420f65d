// Package gemini adapts the Gemini generative-language API to the
// conversational search condition.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the model the study was run against.
const DefaultModel = "gemini-2.5-flash"

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("generative model not configured: missing GEMINI_API_KEY")

// Model turns a prompt into raw model text.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GenAIModel calls Gemini through the genai SDK, asking for JSON output.
type GenAIModel struct {
	client *genai.Client
	model  string
}

// NewGenAIModel creates a Gemini-backed model.
func NewGenAIModel(ctx context.Context, apiKey, model string) (*GenAIModel, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIModel{client: client, model: model}, nil
}

// Complete runs one generation.
func (m *GenAIModel) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// Name returns the model identifier.
func (m *GenAIModel) Name() string {
	return "genai:" + m.model
}
