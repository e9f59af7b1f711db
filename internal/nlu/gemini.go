package nlu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiExtractor extracts hints with Google's Gemini API.
type GeminiExtractor struct {
	client  *genai.Client
	modelID string
}

func NewGeminiExtractor(ctx context.Context, apiKey, modelID string) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("nlu: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("nlu: failed to create gemini client: %w", err)
	}
	return &GeminiExtractor{client: client, modelID: modelID}, nil
}

func (e *GeminiExtractor) Extract(ctx context.Context, turn Turn) (Hint, error) {
	if strings.TrimSpace(turn.Message) == "" {
		return Hint{}, errors.New("nlu: empty message")
	}

	model := e.client.GenerativeModel(e.modelID)
	model.SetTemperature(0)
	model.SetMaxOutputTokens(256)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	resp, err := model.GenerateContent(ctx, genai.Text(buildUserPrompt(turn)))
	if err != nil {
		return Hint{}, fmt.Errorf("nlu: gemini extraction failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Hint{}, errors.New("nlu: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Hint{}, errors.New("nlu: gemini returned empty content")
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	return parseHint(builder.String())
}

// Close releases resources held by the underlying client.
func (e *GeminiExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
