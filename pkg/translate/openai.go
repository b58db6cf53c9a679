package translate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// languageNames renders a code into a full language name for the system
// prompt; model backends follow prose names more reliably than bare codes.
var languageNames = map[string]string{
	"auto": "auto-detect",
	"zh":   "Chinese",
	"en":   "English",
	"ja":   "Japanese",
	"ko":   "Korean",
	"es":   "Spanish",
	"fr":   "French",
	"de":   "German",
	"ru":   "Russian",
	"ar":   "Arabic",
	"pt":   "Portuguese",
	"it":   "Italian",
	"hi":   "Hindi",
	"tr":   "Turkish",
	"fa":   "Persian",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

func buildPrompt(sourceLang, targetLang string) string {
	if sourceLang == "" || sourceLang == "auto" {
		return fmt.Sprintf("You are a professional translator. Translate the following text to %s. Only output the translation, no explanations.", languageName(targetLang))
	}
	return fmt.Sprintf("You are a professional translator. Translate the following text from %s to %s. Only output the translation, no explanations.", languageName(sourceLang), languageName(targetLang))
}

// OpenAIBackend translates via the Chat Completions API, single-shot (no
// streaming): the pipeline already receives drafts incrementally from
// upstream ASR output, so a streamed partial translation buys nothing
// extra here.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, model string) *OpenAIBackend {
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIBackend{client: &client, model: model}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildPrompt(sourceLang, targetLang)),
			openai.UserMessage(text),
		},
		Model: shared.ChatModel(b.model),
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai translate: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai translate: no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

// SupportsDirect is true for every pair: the chat model handles arbitrary
// source/target combinations without an explicit pivot.
func (b *OpenAIBackend) SupportsDirect(sourceLang, targetLang string) bool { return true }
