package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ProseExtractor reads an unstructured document into a single string.
type ProseExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Prose extracts text from PDF and plain-text documents.
// It is stateless and safe for concurrent use.
type Prose struct{}

// Extract returns the full text of the document at path. PDF pages are
// concatenated in order with no separator inserted between them.
// Every failure is returned as an *ExtractionError.
func (Prose) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fail(path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fail(path, err)
		}
		return string(b), nil
	default:
		return "", fail(path, ErrUnsupported)
	}
}

// extractPDF reads every page's plain text. The PDF library panics on some
// malformed inputs, so panics are converted into an ExtractionError.
func extractPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fail(path, fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return "", fail(path, ErrEncrypted)
		}
		return "", fail(path, err)
	}
	defer f.Close()

	var sb strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fail(path, fmt.Errorf("page %d: %w", i, err))
		}
		sb.WriteString(pageText)
	}

	return sb.String(), nil
}
