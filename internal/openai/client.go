package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrorag/petrorag/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultChatModel is the model used for answer generation
	DefaultChatModel = openai.GPT4o
	// DefaultTimeout bounds every remote call
	DefaultTimeout = 60 * time.Second
	// DefaultSystemPrompt frames every completion
	DefaultSystemPrompt = "You are a helpful assistant specializing in petroleum engineering."
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoChoices is returned when a completion carries no message
	ErrNoChoices = errors.New("no completion choices returned")
)

// API defines the remote calls the client depends on
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateChatCompletion(ctx context.Context, system, prompt string) (string, error)
}

// Client wraps the OpenAI API with timeouts and domain error mapping
type Client struct {
	api          API
	dimensions   int
	timeout      time.Duration
	systemPrompt string
}

// OpenAIAdapter implements API on top of go-openai
type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateChatCompletion sends a system and a user message and returns the
// first choice's content.
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, system, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel openai.EmbeddingModel
	ChatModel      string
	// EmbeddingDimensions, when positive, is enforced on every embedding.
	EmbeddingDimensions int
	Timeout             time.Duration
	SystemPrompt        string
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	return newClient(NewOpenAIAdapter(cfg), cfg)
}

func newClient(api API, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Client{
		api:          api,
		dimensions:   cfg.EmbeddingDimensions,
		timeout:      timeout,
		systemPrompt: systemPrompt,
	}
}

// Embed returns the embedding of text. Remote failures, including timeouts,
// are reported as EmbeddingProvider domain errors.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, domain.EmbeddingProviderError(fmt.Errorf("failed to create embedding: %w", err))
	}

	if c.dimensions > 0 && len(embedding) != c.dimensions {
		return nil, domain.EmbeddingProviderError(fmt.Errorf(
			"embedding has %d dimensions, expected %d: %w", len(embedding), c.dimensions, domain.ErrDimensionMismatch))
	}

	return embedding, nil
}

// Generate asks the chat model to complete prompt under the configured
// system prompt and returns the raw text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := c.api.CreateChatCompletion(ctx, c.systemPrompt, prompt)
	if err != nil {
		return "", domain.GenerationProviderError(fmt.Errorf("failed to create completion: %w", err))
	}

	return answer, nil
}
