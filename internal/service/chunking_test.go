package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedSentences(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Sentence %d.", i)
	}
	return out
}

func TestChunkSentences_TwelveSentencesSizeFive(t *testing.T) {
	sentences := numberedSentences(12)

	chunks, err := ChunkSentences("A", sentences, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "A_0", chunks[0].ID)
	assert.Equal(t, strings.Join(sentences[0:5], " "), chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Offset)

	assert.Equal(t, "A_5", chunks[1].ID)
	assert.Equal(t, strings.Join(sentences[5:10], " "), chunks[1].Text)
	assert.Equal(t, 5, chunks[1].Offset)

	assert.Equal(t, "A_10", chunks[2].ID)
	assert.Equal(t, strings.Join(sentences[10:12], " "), chunks[2].Text)
	assert.Equal(t, 10, chunks[2].Offset)

	for _, ch := range chunks {
		assert.Equal(t, "A", ch.SourceDocument)
	}
}

func TestChunkSentences_ConcatenationPreservesSentences(t *testing.T) {
	for n := 0; n <= 23; n++ {
		for size := 1; size <= 7; size++ {
			sentences := numberedSentences(n)

			chunks, err := ChunkSentences("doc", sentences, size)
			require.NoError(t, err)

			texts := make([]string, len(chunks))
			for i, ch := range chunks {
				texts[i] = ch.Text
			}
			assert.Equal(t, strings.Join(sentences, " "), strings.Join(texts, " "), "n=%d size=%d", n, size)
		}
	}
}

func TestChunkSentences_Deterministic(t *testing.T) {
	sentences := numberedSentences(9)

	first, err := ChunkSentences("Drilling Handbook", sentences, 4)
	require.NoError(t, err)
	second, err := ChunkSentences("Drilling Handbook", sentences, 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Drilling Handbook_8", first[2].ID)
}

func TestChunkSentences_InvalidChunkSize(t *testing.T) {
	_, err := ChunkSentences("A", numberedSentences(3), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidChunkSize)
}

func TestChunkSentences_NoSentences(t *testing.T) {
	chunks, err := ChunkSentences("A", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDefaultChunkConfig(t *testing.T) {
	assert.Equal(t, 10, DefaultChunkConfig().SentencesPerChunk)
}
