// Package textproc normalizes raw extracted document text and splits it into
// sentences.
package textproc

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Clean collapses embedded line breaks to spaces and trims surrounding whitespace.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}

// Segmenter splits normalized text into ordered sentences.
type Segmenter interface {
	Segment(text string) []string
}

// PunktSegmenter detects sentence boundaries with the pre-trained English
// punkt model.
type PunktSegmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSegmenter loads the English punkt model. A failure here is fatal
// for ingestion.
func NewPunktSegmenter() (*PunktSegmenter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence model: %w", err)
	}
	return &PunktSegmenter{tokenizer: tokenizer}, nil
}

// Segment returns the trimmed, non-empty sentences of text in order.
func (s *PunktSegmenter) Segment(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := s.tokenizer.Tokenize(text)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		sentence := strings.TrimSpace(t.Text)
		if sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}
