// Package pdf extracts plain text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// Extractor reads the text layer of PDF files on disk.
type Extractor struct{}

// NewExtractor creates a new PDF extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText returns the plain text of every page of the PDF at path.
// Corrupt or unsupported files return an error; the parser may panic on
// malformed input, which is recovered into an error as well.
func (e *Extractor) ExtractText(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("failed to parse pdf %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}

	return buf.String(), nil
}
