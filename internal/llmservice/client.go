package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"research-rag/internal/config"
	"research-rag/internal/models"
)

var (
	ErrEmptyResponse = errors.New("llm returned no choices")

	thinkRe = regexp.MustCompile(models.ThinkTag)
)

// Generator is the part of llms.Model used here.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewClient returns a langchaingo client for an OpenAI compatible chat API
// such as Groq.
func NewClient(llmConfig *config.LLMConfig) (*openai.LLM, error) {
	log.Debug().
		Str("base_url", llmConfig.BaseURL).
		Str("model", llmConfig.Model).
		Msg("Creating LLM client")

	return openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
}

// call llm
func GenerateContent(ctx context.Context, llm Generator, llmConfig *config.LLMConfig, messages []llms.MessageContent) (string, error) {
	var opts []llms.CallOption
	if llmConfig.Model != "" {
		opts = append(opts, llms.WithModel(llmConfig.Model))
	}
	if llmConfig.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(llmConfig.Temperature))
	}
	if llmConfig.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(llmConfig.MaxTokens))
	}

	res, err := llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return StripThinking(res.Choices[0].Content), nil
}

// StripThinking removes <think>...</think> blocks some reasoning models emit.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}

// Messages builds the system + user conversation for one question.
func Messages(system, user string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
}

// Describe turns a client error into a message fit for end users.
func Describe(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the language model did not answer in time"
	case strings.Contains(lower, "401"), strings.Contains(lower, "invalid api key"), strings.Contains(lower, "unauthorized"):
		return "the language model rejected the API key"
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"):
		return "the language model rate limit was reached, try again shortly"
	}
	return fmt.Sprintf("language model request failed: %s", msg)
}
