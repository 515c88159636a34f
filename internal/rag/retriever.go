package rag

import (
	"context"
	"fmt"
)

// Retriever combines an Embedder and a Searcher: it embeds the query text
// at retrieval time and delegates ranking to the index.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// searcher ranks stored chunks against the query vector.
	searcher Searcher

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a Retriever. defaultTopK sets the fallback result
// count when Retrieve is called with topK <= 0; values <= 0 mean 3.
func NewRetriever(embedder Embedder, searcher Searcher, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("rag: searcher must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Retriever{
		embedder:    embedder,
		searcher:    searcher,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds query and returns the texts of the most similar chunks.
// The embedder's error is returned unchanged in kind so callers can inspect
// it with errors.Is.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	return r.searcher.Query(vec, topK), nil
}
