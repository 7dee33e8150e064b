package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestComposeContext(t *testing.T) {
	assert.Equal(t, "Document 1:\nfoo\n\nDocument 2:\nbar\n\n", ComposeContext([]string{"foo", "bar"}))
}

func TestComposeContext_FlattensLineBreaks(t *testing.T) {
	assert.Equal(t, "Document 1:\nline one line two\n\n", ComposeContext([]string{"line one\nline two"}))
}

func TestComposeContext_Empty(t *testing.T) {
	assert.Equal(t, "", ComposeContext(nil))
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("What is API gravity?", "Document 1:\nfoo\n\n")

	want := "Answer the question as truthfully as possible using the provided context, " +
		"and if the answer is not contained within the text below, say \"I don't Know.\"\n\n" +
		"Context:\n" +
		"Document 1:\nfoo\n\n" +
		"\n\nQuestion: What is API gravity?\nAnswer:"
	assert.Equal(t, want, got)
}

func TestContextTexts_FollowsRankOrder(t *testing.T) {
	corpus := mustCorpus(t, map[string]string{"x": "text x", "y": "text y", "z": "text z"}, "x", "y", "z")

	texts := ContextTexts([]ScoredChunk{{ChunkID: "z"}, {ChunkID: "missing"}, {ChunkID: "x"}}, corpus)

	assert.Equal(t, []string{"text z", "text x"}, texts)
}

func TestAnswer_Orchestrates(t *testing.T) {
	corpus := mustCorpus(t, map[string]string{
		"x": "Porosity is void fraction.",
		"y": "Unrelated.",
		"z": "Permeability\nis flow capacity.",
	}, "x", "y", "z")

	provider := new(MockProvider)
	provider.On("Embed", mock.Anything, "porosity?").Return([]float32{1, 0}, nil)
	expectedPrompt := BuildPrompt("porosity?",
		"Document 1:\nPorosity is void fraction.\n\nDocument 2:\nPermeability is flow capacity.\n\n")
	provider.On("Generate", mock.Anything, expectedPrompt).Return("It is the void fraction.", nil)

	answer, err := Answer(context.Background(), provider, "porosity?", corpus, xyzStore(t), 2)

	require.NoError(t, err)
	assert.Equal(t, "It is the void fraction.", answer)
	provider.AssertExpectations(t)
}

func TestAnswer_GenerationErrorPropagates(t *testing.T) {
	corpus := mustCorpus(t, nil, "x", "y", "z")
	provider := new(MockProvider)
	provider.On("Embed", mock.Anything, "q").Return([]float32{1, 0}, nil)
	provider.On("Generate", mock.Anything, mock.Anything).Return("", domain.GenerationProviderError(errors.New("rate limited")))

	answer, err := Answer(context.Background(), provider, "q", corpus, xyzStore(t), 2)

	assert.Empty(t, answer)
	assert.ErrorIs(t, err, domain.ErrGenerationProvider)
}

func TestAnswer_EmbeddingErrorSkipsGeneration(t *testing.T) {
	corpus := mustCorpus(t, nil, "x", "y", "z")
	provider := new(MockProvider)
	provider.On("Embed", mock.Anything, "q").Return(nil, domain.EmbeddingProviderError(errors.New("down")))

	_, err := Answer(context.Background(), provider, "q", corpus, xyzStore(t), 2)

	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	provider.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

// mustCorpus builds a corpus with the given ids; text defaults to "text <id>".
func mustCorpus(t *testing.T, texts map[string]string, ids ...string) *domain.Corpus {
	t.Helper()
	chunks := make([]domain.Chunk, len(ids))
	for i, id := range ids {
		text, ok := texts[id]
		if !ok {
			text = "text " + id
		}
		doc, _, _ := strings.Cut(id, "_")
		chunks[i] = domain.Chunk{ID: id, SourceDocument: doc, Text: text}
	}
	corpus, err := domain.NewCorpus(chunks)
	require.NoError(t, err)
	return corpus
}
