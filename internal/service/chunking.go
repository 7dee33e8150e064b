package service

import (
	"strings"

	"github.com/petrorag/petrorag/internal/domain"
)

// ChunkConfig controls how sentences are grouped into chunks.
type ChunkConfig struct {
	SentencesPerChunk int
}

// DefaultChunkConfig provides the default chunking policy.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		SentencesPerChunk: 10,
	}
}

// ChunkSentences groups sentences into consecutive windows of exactly
// chunkSize sentences; the last window may be shorter. The offset of window i
// is i*chunkSize and is part of the chunk id. Identical input always yields
// identical ids and text.
func ChunkSentences(document string, sentences []string, chunkSize int) ([]domain.Chunk, error) {
	if chunkSize < 1 {
		return nil, domain.ErrInvalidChunkSize
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, (len(sentences)+chunkSize-1)/chunkSize)
	for offset := 0; offset < len(sentences); offset += chunkSize {
		end := offset + chunkSize
		if end > len(sentences) {
			end = len(sentences)
		}

		chunks = append(chunks, domain.Chunk{
			ID:             domain.ChunkID(document, offset),
			SourceDocument: document,
			Offset:         offset,
			Text:           strings.Join(sentences[offset:end], " "),
		})
	}

	return chunks, nil
}
