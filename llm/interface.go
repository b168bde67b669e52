package llm

import "context"

// PromptEnhancer turns a raw user idea into an enriched generation prompt.
// Implementations never fail past their own boundary; the caller always
// receives usable text.
type PromptEnhancer interface {
	Enhance(ctx context.Context, userPrompt string) string
}
