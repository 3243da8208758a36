package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// defaultOpenAIModel is used when no model is configured.
const defaultOpenAIModel = openai.GPT4oMini

// newOpenAICall builds a call against an OpenAI-compatible chat completion
// endpoint.
func newOpenAICall(prov Provider) (callFunc, error) {
	if prov.APIKey == "" {
		return nil, fmt.Errorf("provider %q requires an API key", prov.ID)
	}

	cfg := openai.DefaultConfig(prov.APIKey)
	if prov.BaseURL != "" {
		cfg.BaseURL = prov.BaseURL
	}
	client := openai.NewClientWithConfig(cfg)

	model := prov.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return func(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
		req := openai.ChatCompletionRequest{
			Model:       model,
			Temperature: 0.3,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: translationPrompt(sourceLang, targetLang),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: text,
				},
			},
		}

		resp, err := client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("openai: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai: no translation returned")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}, nil
}

// translationPrompt builds the system prompt for a language pair.
func translationPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(
		"You are a professional translator. Translate the user's text from %s to %s. "+
			"Preserve punctuation, whitespace, and any markup exactly. "+
			"Respond with only the translated text, nothing else.",
		languageName(sourceLang), languageName(targetLang))
}

// languageName resolves a code like "pl" to a display name like "Polish",
// falling back to the code itself when it does not parse.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return display.English.Languages().Name(tag)
}
