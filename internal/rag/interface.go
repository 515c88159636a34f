// Package rag holds the retrieval side of the assistant: the in-memory
// vector index that ingestion writes to and the context assembler reads
// from, the cosine similarity it ranks by, and an optional Qdrant mirror.
package rag

import (
	"context"
)

// Chunk is an immutable unit of indexed source text.
type Chunk struct {
	// Text is the passage content returned by queries.
	Text string
	// Source tags where the passage came from (e.g. "flood-manual.pdf").
	Source string
}

// Result is a scored query hit.
type Result struct {
	Chunk Chunk
	// Score is the cosine similarity to the query, in [-1, 1].
	Score float64
}

// Embedder converts text into a dense vector.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed returns the embedding of text. Blank text is rejected.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher ranks stored chunks against a query embedding.
type Searcher interface {
	// Query returns up to topK chunk texts ordered by descending similarity.
	Query(queryEmbedding []float32, topK int) []string
}

// Mirror receives a copy of every chunk accepted by the index. It is a
// write-only sink; queries are always served from memory.
type Mirror interface {
	Upsert(ctx context.Context, chunk Chunk, embedding []float32) error
}
