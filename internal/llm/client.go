// Package llm streams chat completions from an OpenAI-compatible API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/logger"
)

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default endpoint (local server,
// proxy, compatible provider).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens caps the response length. Spoken replies should stay
// short.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// Client implements domain.TokenStreamer over the OpenAI chat API.
type Client struct {
	api         *openai.Client
	baseURL     string
	model       string
	temperature float32
	maxTokens   int
	log         *logger.Logger
}

// NewClient creates a streaming chat client.
func NewClient(apiKey string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		model:       openai.GPT4oMini,
		temperature: 0.8,
		maxTokens:   256,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Stream requests a completion and invokes onToken for every content
// delta as it arrives. Returns the full assembled response. On error the
// partial response accumulated so far is returned alongside it.
func (c *Client) Stream(ctx context.Context, messages []domain.Message, onToken func(string)) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    convertMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return full.String(), ctx.Err()
			}
			return full.String(), fmt.Errorf("stream recv: %w", err)
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onToken != nil {
			onToken(delta)
		}
	}

	c.log.Debug("llm: completed response (%d chars)", full.Len())
	return full.String(), nil
}

// Embed returns one embedding vector per input text. Used for memory
// retrieval.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func convertMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    convertRole(m.Role),
			Content: m.Text,
		})
	}
	return out
}

func convertRole(role string) string {
	switch role {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
