package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockOpenAIAPI) CreateChatCompletion(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

func TestClient_Embed_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{EmbeddingDimensions: 1536})

	text := "Casing design must account for burst and collapse loads."
	expected := make([]float32, 1536)
	for i := range expected {
		expected[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", mock.Anything, text).Return(expected, nil)

	embedding, err := client.Embed(context.Background(), text)

	assert.NoError(t, err)
	assert.Equal(t, expected, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_Embed_EmptyText(t *testing.T) {
	client := NewClientWithConfig(Config{})

	embedding, err := client.Embed(context.Background(), "")

	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_Embed_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{})

	mockAPI.On("CreateEmbeddings", mock.Anything, "Test text").Return(nil, errors.New("API rate limit exceeded"))

	embedding, err := client.Embed(context.Background(), "Test text")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertExpectations(t)
}

func TestClient_Embed_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{EmbeddingDimensions: 1536})

	mockAPI.On("CreateEmbeddings", mock.Anything, "Test text").Return(make([]float32, 512), nil)

	embedding, err := client.Embed(context.Background(), "Test text")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestClient_Embed_NoDimensionCheckByDefault(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{})

	mockAPI.On("CreateEmbeddings", mock.Anything, "x").Return([]float32{1, 2, 3}, nil)

	embedding, err := client.Embed(context.Background(), "x")

	require.NoError(t, err)
	assert.Len(t, embedding, 3)
}

func TestClient_Embed_AppliesTimeout(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{Timeout: 20 * time.Millisecond})

	mockAPI.On("CreateEmbeddings", mock.Anything, "slow").
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(nil, context.DeadlineExceeded)

	start := time.Now()
	_, err := client.Embed(context.Background(), "slow")

	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_Generate_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{})

	mockAPI.On("CreateChatCompletion", mock.Anything, DefaultSystemPrompt, "prompt").Return("Mud weight controls formation pressure.", nil)

	answer, err := client.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "Mud weight controls formation pressure.", answer)
	mockAPI.AssertExpectations(t)
}

func TestClient_Generate_CustomSystemPrompt(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{SystemPrompt: "Be brief."})

	mockAPI.On("CreateChatCompletion", mock.Anything, "Be brief.", "p").Return("ok", nil)

	_, err := client.Generate(context.Background(), "p")

	require.NoError(t, err)
	mockAPI.AssertExpectations(t)
}

func TestClient_Generate_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{})

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything, "p").Return("", errors.New("503 service unavailable"))

	answer, err := client.Generate(context.Background(), "p")

	assert.Empty(t, answer)
	assert.ErrorIs(t, err, domain.ErrGenerationProvider)
	assert.Equal(t, domain.ErrCodeGenerationProvider, domain.Code(err))
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "test-api-key"})

	assert.NotNil(t, client)
	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultTimeout, client.timeout)
	assert.Equal(t, DefaultSystemPrompt, client.systemPrompt)
}

func TestNewOpenAIAdapter_Defaults(t *testing.T) {
	adapter := NewOpenAIAdapter(Config{APIKey: "k"})

	assert.Equal(t, DefaultEmbeddingModel, adapter.embeddingModel)
	assert.Equal(t, DefaultChatModel, adapter.chatModel)
}
