// Package extract converts raw source files into text for indexing.
// Prose documents (PDF, plain text) become a single string; tabular
// documents (CSV) become one pre-formatted sentence per matching row.
package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrEncrypted is returned for password-protected documents.
	ErrEncrypted = errors.New("document is encrypted")

	// ErrUnsupported is returned for file types an extractor cannot read.
	ErrUnsupported = errors.New("unsupported document type")
)

// ExtractionError reports a failure to read a single source. It is never
// fatal to ingestion: the pipeline logs it and moves on to the next source.
type ExtractionError struct {
	// Source is the path of the document that failed.
	Source string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error { return e.Err }

// fail wraps err in an ExtractionError for source.
func fail(source string, err error) error {
	return &ExtractionError{Source: source, Err: err}
}
