package llmservice

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"research-rag/internal/config"
)

type stubLLM struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	nOpts    int
}

func (s *stubLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	s.nOpts = len(options)
	return s.resp, s.err
}

func TestGenerateContent(t *testing.T) {
	llm := &stubLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: "<think>hmm</think>\nLight becomes chemical energy."},
	}}}
	cfg := &config.LLMConfig{Model: "m", Temperature: 0.2, MaxTokens: 100}

	out, err := GenerateContent(context.Background(), llm, cfg, Messages("sys", "user"))
	require.NoError(t, err)
	assert.Equal(t, "Light becomes chemical energy.", out)
	assert.Equal(t, 3, llm.nOpts)
	require.Len(t, llm.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, llm.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, llm.messages[1].Role)
}

func TestGenerateContentErrors(t *testing.T) {
	cfg := &config.LLMConfig{}

	_, err := GenerateContent(context.Background(), &stubLLM{resp: &llms.ContentResponse{}}, cfg, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("dial tcp: connection refused")
	_, err = GenerateContent(context.Background(), &stubLLM{err: boom}, cfg, nil)
	assert.ErrorIs(t, err, boom)
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, Describe(fmt.Errorf("x: %w", context.DeadlineExceeded)), "in time")
	assert.Contains(t, Describe(errors.New("API returned unexpected status code: 401")), "API key")
	assert.Contains(t, Describe(errors.New("status code: 429: Rate limit reached")), "rate limit")
	assert.Contains(t, Describe(errors.New("boom")), "boom")
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(&config.LLMConfig{BaseURL: "https://api.groq.com/openai/v1", Model: "llama-3.3-70b-versatile", Key: "k"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
