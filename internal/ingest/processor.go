// Package ingest turns a directory of source PDFs into a chunked corpus.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/petrorag/petrorag/internal/service"
	"github.com/petrorag/petrorag/internal/textproc"
)

// TextExtractor pulls raw text out of a source document.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Document is a discovered source file.
type Document struct {
	Name string
	Path string
}

// Processor builds a corpus from the PDFs in a directory.
type Processor struct {
	extractor TextExtractor
	segmenter textproc.Segmenter
	chunkCfg  service.ChunkConfig
	logger    *slog.Logger
}

// NewProcessor creates a new Processor.
func NewProcessor(extractor TextExtractor, segmenter textproc.Segmenter, chunkCfg service.ChunkConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		extractor: extractor,
		segmenter: segmenter,
		chunkCfg:  chunkCfg,
		logger:    logger.With("component", "ingest"),
	}
}

// Discover lists the PDF files in dir in lexical order. The document name is
// the file name without its extension.
func Discover(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		docs = append(docs, Document{
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
			Path: filepath.Join(dir, name),
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Path < docs[j].Path
	})
	return docs, nil
}

// ProcessDir discovers and processes every PDF in dir. A document that fails
// to extract is logged and skipped; it contributes no chunks.
func (p *Processor) ProcessDir(ctx context.Context, dir string) (*domain.Corpus, error) {
	docs, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, docs)
}

// Process chunks the given documents in order. A document whose name was
// already taken by an earlier one is skipped, since its chunk ids would
// collide.
func (p *Processor) Process(ctx context.Context, docs []Document) (*domain.Corpus, error) {
	var all []domain.Chunk
	skipped := 0
	seen := make(map[string]string, len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if first, ok := seen[doc.Name]; ok {
			skipped++
			err := domain.IngestionError(doc.Name, fmt.Errorf("document name already used by %s", filepath.Base(first)))
			p.logger.Warn("skipping document", "document", doc.Name, "path", doc.Path, "err", err)
			continue
		}
		seen[doc.Name] = doc.Path

		chunks, err := p.processDocument(ctx, doc)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			skipped++
			p.logger.Warn("skipping document", "document", doc.Name, "err", domain.IngestionError(doc.Name, err))
			continue
		}

		p.logger.Info("processed document", "document", doc.Name, "chunks", len(chunks))
		all = append(all, chunks...)
	}

	corpus, err := domain.NewCorpus(all)
	if err != nil {
		return nil, err
	}

	p.logger.Info("corpus ready", "documents", len(docs)-skipped, "skipped", skipped, "chunks", corpus.Len())
	return corpus, nil
}

func (p *Processor) processDocument(ctx context.Context, doc Document) ([]domain.Chunk, error) {
	raw, err := p.extractor.ExtractText(ctx, doc.Path)
	if err != nil {
		return nil, err
	}

	sentences := p.segmenter.Segment(textproc.Clean(raw))
	return service.ChunkSentences(doc.Name, sentences, p.chunkCfg.SentencesPerChunk)
}
