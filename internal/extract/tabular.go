package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mifdirfan/climatetrack/internal/logging"
)

// TabularExtractor reads a delimited file into pre-formatted sentences.
type TabularExtractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// Tabular turns CSV/TSV rows into sentences using an ordered list of
// matchers. Government open-data exports are frequently CP949 encoded, so
// files that are not valid UTF-8 are decoded as EUC-KR.
type Tabular struct {
	// Matchers is the ordered list of table shapes. Nil selects DefaultMatchers.
	Matchers []Matcher
	// Logger receives per-row skip diagnostics. Nil uses slog.Default.
	Logger *slog.Logger
}

// Extract parses the file at path and returns one sentence per row that a
// matcher accepts. Unmatched and malformed rows are skipped silently.
// Only failures to open or decode the file are returned, as *ExtractionError.
func (t Tabular) Extract(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fail(path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fail(path, err)
	}

	r, err := decode(raw)
	if err != nil {
		return nil, fail(path, err)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		cr.Comma = '\t'
	}

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fail(path, err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	matchers := t.Matchers
	if matchers == nil {
		matchers = DefaultMatchers()
	}
	log := logging.OrDefault(t.Logger)

	var sentences []string
	line := 1
	for {
		cells, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Debug("extract: skipping malformed row",
				slog.String("source", path),
				slog.Int("line", line),
				slog.Any("error", err),
			)
			continue
		}
		if s, ok := FormatRow(matchers, headers, cells); ok {
			sentences = append(sentences, s)
		}
	}

	return sentences, nil
}

// decode strips a UTF-8 byte order mark and falls back to EUC-KR for input
// that is not valid UTF-8.
func decode(raw []byte) (io.Reader, error) {
	if utf8.Valid(raw) {
		stripBOM := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		return transform.NewReader(bytes.NewReader(raw), stripBOM), nil
	}

	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), raw)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}
