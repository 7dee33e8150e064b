package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/petrorag/petrorag/internal/embedding"
)

const promptHeader = "Answer the question as truthfully as possible using the provided context, " +
	"and if the answer is not contained within the text below, say \"I don't Know.\"\n\n" +
	"Context:\n"

// Generator completes a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider is the remote model dependency of the engine.
type Provider interface {
	QueryEmbedder
	Generator
}

// ComposeContext numbers each retrieved text as "Document N:" and separates
// entries with a blank line, keeping retrieval order. Line breaks inside a
// text are flattened to spaces.
func ComposeContext(texts []string) string {
	var b strings.Builder
	for i, text := range texts {
		b.WriteString("Document ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(":\n")
		b.WriteString(strings.ReplaceAll(text, "\n", " "))
		b.WriteString("\n\n")
	}
	return b.String()
}

// BuildPrompt wraps context and query in the answering instructions.
func BuildPrompt(query, context string) string {
	return promptHeader + context + "\n\nQuestion: " + query + "\nAnswer:"
}

// ContextTexts resolves ranked ids to chunk text. Ids missing from corpus
// are skipped.
func ContextTexts(ranked []ScoredChunk, corpus *domain.Corpus) []string {
	texts := make([]string, 0, len(ranked))
	for _, r := range ranked {
		if ch, ok := corpus.Get(r.ChunkID); ok {
			texts = append(texts, ch.Text)
		}
	}
	return texts
}

// Answer runs retrieve, compose, prompt and generate once, without history.
// Provider failures are returned unchanged.
func Answer(ctx context.Context, provider Provider, query string, corpus *domain.Corpus, store *embedding.Store, topN int) (string, error) {
	prompt, err := preparePrompt(ctx, provider, query, corpus, store, topN)
	if err != nil {
		return "", err
	}
	return provider.Generate(ctx, prompt)
}

func preparePrompt(ctx context.Context, embedder QueryEmbedder, query string, corpus *domain.Corpus, store *embedding.Store, topN int) (string, error) {
	ranked, err := Retrieve(ctx, embedder, query, store, topN)
	if err != nil {
		return "", err
	}
	return BuildPrompt(query, ComposeContext(ContextTexts(ranked, corpus))), nil
}
