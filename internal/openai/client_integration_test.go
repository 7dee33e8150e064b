//go:build integration

package openai

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Embed_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClientWithConfig(Config{APIKey: apiKey, EmbeddingDimensions: 1536})

	embedding, err := client.Embed(context.Background(), "Drilling fluid density controls bottomhole pressure.")

	require.NoError(t, err)
	assert.Len(t, embedding, 1536)
}

func TestIntegration_Generate_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClientWithConfig(Config{APIKey: apiKey})

	answer, err := client.Generate(context.Background(), "Reply with the single word: ready")

	require.NoError(t, err)
	assert.True(t, strings.Contains(strings.ToLower(answer), "ready"))
}
