package search

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/semsearch/gateway/src/types"
)

const synthSystemPrompt = "You are a research assistant. Answer the user's question using only the " +
	"provided snippets. Be concise, note disagreements between snippets, and say so when the " +
	"snippets do not contain an answer."

// Synthesizer produces a natural-language answer from search results using
// an LLM chat completion.
type Synthesizer struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// SynthesizerConfig holds configuration for the LLM synthesizer.
type SynthesizerConfig struct {
	APIKey    string
	BaseURL   string // optional custom endpoint
	Model     string // default: gpt-4o-mini
	MaxTokens int    // default: 1024
}

// NewSynthesizer creates an LLM synthesizer backed by the OpenAI SDK.
func NewSynthesizer(cfg SynthesizerConfig) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for synthesis")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Synthesizer{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Summarize answers the query from the given results.
func (s *Synthesizer) Summarize(ctx context.Context, query string, results []types.SearchResult) (string, error) {
	if len(results) == 0 {
		return "No relevant results found.", nil
	}

	prompt := fmt.Sprintf("Question: %s\n\nSnippets:\n%s", query, FormatSnippets(results))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(synthSystemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(s.maxTokens)),
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("synthesis request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
