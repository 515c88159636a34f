// Package ingestion turns configured source files into indexed chunks. The
// Pipeline runs extraction, chunking and indexing synchronously; the Runner
// launches it once in the background when the host process becomes ready.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mifdirfan/climatetrack/internal/chunker"
	"github.com/mifdirfan/climatetrack/internal/extract"
	"github.com/mifdirfan/climatetrack/internal/logging"
	"github.com/mifdirfan/climatetrack/internal/rag"
)

const (
	// defaultMinChunkLength is the trimmed length below which a chunk is
	// discarded just before indexing.
	defaultMinChunkLength = 10

	// proseTag labels chunks cut from the pooled prose corpus. Chunk
	// boundaries may span files, so no single file tag applies.
	proseTag = "prose"
)

// Indexer is the write side of the vector index.
type Indexer interface {
	Add(ctx context.Context, chunk rag.Chunk) error
}

// Config holds the optional collaborators of a Pipeline.
type Config struct {
	// Prose extracts free text from documents. Nil selects extract.Prose.
	Prose extract.ProseExtractor

	// Tabular extracts row sentences from delimited files. Nil selects
	// extract.Tabular with the default matchers.
	Tabular extract.TabularExtractor

	// Chunker splits the pooled prose text. The zero value uses the
	// default 20-character minimum.
	Chunker chunker.Chunker

	// MinChunkLength is the trimmed length a chunk must reach to be indexed.
	// Zero or negative selects 10.
	MinChunkLength int

	// Logger receives progress and failure logs. Nil uses slog.Default.
	Logger *slog.Logger

	// Registerer receives the pipeline metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// Report summarises one pipeline run.
type Report struct {
	// Sources is the number of sources attempted.
	Sources int `json:"sources"`
	// FailedSources is the number of sources whose extraction failed.
	FailedSources int `json:"failed_sources"`
	// Indexed is the number of chunks appended to the index.
	Indexed int `json:"indexed"`
	// Dropped is the number of chunks whose indexing failed.
	Dropped int `json:"dropped"`
	// Filtered is the number of chunks discarded as too short.
	Filtered int `json:"filtered"`
	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration_ns"`
	// Interrupted is true when the context was cancelled before all chunks
	// were processed.
	Interrupted bool `json:"interrupted"`
}

// Pipeline orchestrates the extract → chunk → index flow for a set of
// sources.
type Pipeline struct {
	// index receives the produced chunks.
	index Indexer

	// prose and tabular are the extractors per source kind.
	prose   extract.ProseExtractor
	tabular extract.TabularExtractor

	// chunker splits the pooled prose text.
	chunker chunker.Chunker

	// minLen is the resolved pre-index length filter.
	minLen int

	log     *slog.Logger
	metrics *pipelineMetrics
}

// NewPipeline constructs a Pipeline that writes into index.
func NewPipeline(index Indexer, cfg *Config) (*Pipeline, error) {
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	log := logging.OrDefault(cfg.Logger)

	prose := cfg.Prose
	if prose == nil {
		prose = extract.Prose{}
	}
	tabular := cfg.Tabular
	if tabular == nil {
		tabular = extract.Tabular{Logger: log}
	}
	minLen := cfg.MinChunkLength
	if minLen <= 0 {
		minLen = defaultMinChunkLength
	}

	return &Pipeline{
		index:   index,
		prose:   prose,
		tabular: tabular,
		chunker: cfg.Chunker,
		minLen:  minLen,
		log:     log,
		metrics: newPipelineMetrics(cfg.Registerer),
	}, nil
}

// Run ingests sources and returns a summary. Failures never abort the run:
// a source that cannot be extracted is logged and skipped, and a chunk that
// cannot be indexed is logged and dropped. Prose sources are pooled into a
// single text and chunked once so paragraph boundaries reflect the whole
// corpus. Tabular rows are indexed as-is.
func (p *Pipeline) Run(ctx context.Context, sources []Source) Report {
	start := time.Now()
	report := Report{Sources: len(sources)}
	defer func() {
		report.Duration = time.Since(start)
		p.metrics.duration.Observe(report.Duration.Seconds())
	}()

	var (
		proseTexts []string
		chunks     []rag.Chunk
	)
	for _, src := range sources {
		switch src.Kind {
		case KindProse:
			text, err := p.prose.Extract(ctx, src.Path)
			if err != nil {
				p.sourceFailed(src, err, &report)
				continue
			}
			p.metrics.sources.WithLabelValues(string(src.Kind), "ok").Inc()
			if strings.TrimSpace(text) == "" {
				p.log.Warn("ingestion: no text extracted", slog.String("path", src.Path))
				continue
			}
			p.log.Info("ingestion: extracted prose source",
				slog.String("path", src.Path),
				slog.Int("chars", len(text)),
			)
			proseTexts = append(proseTexts, text)

		case KindTabular:
			sentences, err := p.tabular.Extract(ctx, src.Path)
			if err != nil {
				p.sourceFailed(src, err, &report)
				continue
			}
			p.metrics.sources.WithLabelValues(string(src.Kind), "ok").Inc()
			p.log.Info("ingestion: extracted tabular source",
				slog.String("path", src.Path),
				slog.Int("rows", len(sentences)),
			)
			for _, s := range sentences {
				chunks = append(chunks, rag.Chunk{Text: s, Source: src.Tag})
			}

		default:
			p.sourceFailed(src, fmt.Errorf("unknown source kind %q", src.Kind), &report)
		}
	}

	// Prose chunks are indexed before tabular rows.
	proseChunks := p.chunker.Chunk(strings.Join(proseTexts, "\n\n"))
	pooled := make([]rag.Chunk, 0, len(proseChunks)+len(chunks))
	for _, text := range proseChunks {
		pooled = append(pooled, rag.Chunk{Text: text, Source: proseTag})
	}
	pooled = append(pooled, chunks...)

	p.log.Info("ingestion: indexing chunks",
		slog.Int("prose_chunks", len(proseChunks)),
		slog.Int("tabular_chunks", len(chunks)),
	)

	for i, chunk := range pooled {
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			p.log.Warn("ingestion: interrupted",
				slog.Int("remaining", len(pooled)-i),
				slog.Any("error", err),
			)
			break
		}
		if len([]rune(strings.TrimSpace(chunk.Text))) < p.minLen {
			report.Filtered++
			p.metrics.chunks.WithLabelValues("filtered").Inc()
			continue
		}
		if err := p.index.Add(ctx, chunk); err != nil {
			report.Dropped++
			p.metrics.chunks.WithLabelValues("dropped").Inc()
			level := slog.LevelWarn
			if errors.Is(err, rag.ErrBlankChunk) {
				level = slog.LevelDebug
			}
			p.log.Log(ctx, level, "ingestion: dropped chunk",
				slog.String("source", chunk.Source),
				slog.Any("error", err),
			)
			continue
		}
		report.Indexed++
		p.metrics.chunks.WithLabelValues("indexed").Inc()
	}

	p.log.Info("ingestion: run complete",
		slog.Int("sources", report.Sources),
		slog.Int("failed_sources", report.FailedSources),
		slog.Int("indexed", report.Indexed),
		slog.Int("dropped", report.Dropped),
		slog.Int("filtered", report.Filtered),
	)
	return report
}

// sourceFailed records and logs a source that produced no text.
func (p *Pipeline) sourceFailed(src Source, err error, report *Report) {
	report.FailedSources++
	p.metrics.sources.WithLabelValues(string(src.Kind), "failed").Inc()
	p.log.Warn("ingestion: skipping source",
		slog.String("path", src.Path),
		slog.String("kind", string(src.Kind)),
		slog.Any("error", err),
	)
}
