package translate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend translates via the Gemini GenerateContent API, single-shot
// rather than streaming.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if model == "" {
		model = "gemini-2.0-flash-exp"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGoogleAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	resp, err := b.client.Models.GenerateContent(
		ctx,
		b.model,
		genai.Text(text),
		b.requestConfig(sourceLang, targetLang),
	)
	if err != nil {
		return "", fmt.Errorf("gemini translate: %w", err)
	}

	out := collectGeminiText(resp)
	if out == "" {
		return "", fmt.Errorf("gemini translate: empty response")
	}
	return out, nil
}

func (b *GeminiBackend) SupportsDirect(sourceLang, targetLang string) bool { return true }

func (b *GeminiBackend) requestConfig(sourceLang, targetLang string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: buildPrompt(sourceLang, targetLang)},
			},
		},
	}
}

func collectGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}
