package rag

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mifdirfan/climatetrack/internal/logging"
)

// ErrBlankChunk is returned by Add for empty or whitespace-only text.
var ErrBlankChunk = errors.New("rag: chunk text is blank")

// IndexQueryError describes a stored entry that could not be compared with
// a query because the two vectors have different dimensions. It is logged,
// never returned from Query.
type IndexQueryError struct {
	// Position is the insertion index of the offending entry.
	Position int
	// Want is the query dimension.
	Want int
	// Got is the stored entry's dimension.
	Got int
}

// Error implements the error interface.
func (e *IndexQueryError) Error() string {
	return fmt.Sprintf("rag: entry %d has dimension %d, query has %d", e.Position, e.Got, e.Want)
}

// Unwrap lets errors.Is match ErrDimensionMismatch.
func (e *IndexQueryError) Unwrap() error { return ErrDimensionMismatch }

// IndexConfig holds the optional collaborators of an Index.
type IndexConfig struct {
	// Mirror, when set, receives every accepted chunk after it is appended.
	// Mirror failures are logged and never undo the append.
	Mirror Mirror
	// Logger is used for warnings. Nil uses slog.Default.
	Logger *slog.Logger
	// Registerer receives the index metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// Index is an append-only, in-memory vector index searched by exact linear
// scan. The chunk and embedding sequences are parallel: position i of one
// corresponds to position i of the other. Both are only ever extended
// together under mu, so readers never observe them at different lengths.
type Index struct {
	// embedder produces the vector for each added chunk.
	embedder Embedder
	// mirror is the optional write-through sink.
	mirror Mirror
	// log receives add and query warnings.
	log *slog.Logger
	// metrics are the index collectors.
	metrics *indexMetrics

	// mu guards chunks and embeddings.
	mu sync.RWMutex
	// chunks holds the stored passages in insertion order.
	chunks []Chunk
	// embeddings holds one vector per chunk.
	embeddings [][]float32
}

// NewIndex constructs an empty Index that embeds chunks with embedder.
func NewIndex(embedder Embedder, cfg *IndexConfig) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if cfg == nil {
		cfg = &IndexConfig{}
	}
	return &Index{
		embedder: embedder,
		mirror:   cfg.Mirror,
		log:      logging.OrDefault(cfg.Logger),
		metrics:  newIndexMetrics(cfg.Registerer),
	}, nil
}

// Add embeds chunk and appends it to the index. Blank text is rejected with
// ErrBlankChunk before any embedding call. If embedding fails the index is
// left unchanged and the embedder's error is returned.
func (ix *Index) Add(ctx context.Context, chunk Chunk) error {
	if strings.TrimSpace(chunk.Text) == "" {
		ix.log.Warn("rag: ignoring blank chunk", slog.String("source", chunk.Source))
		return ErrBlankChunk
	}

	vec, err := ix.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("rag: embed chunk from %s: %w", chunk.Source, err)
	}

	ix.mu.Lock()
	ix.chunks = append(ix.chunks, chunk)
	ix.embeddings = append(ix.embeddings, vec)
	n := len(ix.chunks)
	ix.mu.Unlock()

	ix.metrics.size.Set(float64(n))

	if ix.mirror != nil {
		if err := ix.mirror.Upsert(ctx, chunk, vec); err != nil {
			ix.log.Warn("rag: mirror upsert failed",
				slog.String("source", chunk.Source),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// Len returns the number of stored chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// snapshot returns the stored sequences as of now. Stored elements are never
// modified after being appended, so sharing the backing arrays is safe.
func (ix *Index) snapshot() ([]Chunk, [][]float32) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.chunks[:len(ix.chunks):len(ix.chunks)], ix.embeddings[:len(ix.embeddings):len(ix.embeddings)]
}

// Search scores every stored entry against query and returns the topK best,
// ordered by descending similarity with ties kept in insertion order.
// Entries whose dimension differs from the query's are skipped.
func (ix *Index) Search(query []float32, topK int) []Result {
	if topK <= 0 {
		return []Result{}
	}
	chunks, embeddings := ix.snapshot()
	if len(chunks) == 0 {
		return []Result{}
	}

	start := time.Now()
	defer func() { ix.metrics.queryDuration.Observe(time.Since(start).Seconds()) }()

	results := make([]Result, 0, len(chunks))
	var firstMismatch *IndexQueryError
	skipped := 0
	for i, vec := range embeddings {
		score, err := Cosine(query, vec)
		if err != nil {
			if firstMismatch == nil {
				firstMismatch = &IndexQueryError{Position: i, Want: len(query), Got: len(vec)}
			}
			skipped++
			continue
		}
		results = append(results, Result{Chunk: chunks[i], Score: score})
	}

	if skipped > 0 {
		ix.metrics.dimensionMismatch.Add(float64(skipped))
		ix.log.Warn("rag: skipped entries with mismatched dimension",
			slog.Int("skipped", skipped),
			slog.Any("first", firstMismatch),
		)
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Query returns the text of the topK most similar chunks. It returns an
// empty slice when topK <= 0 or the index is empty.
func (ix *Index) Query(query []float32, topK int) []string {
	results := ix.Search(query, topK)
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	return texts
}
