package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mifdirfan/climatetrack/internal/budget"
	"github.com/mifdirfan/climatetrack/internal/chat"
	"github.com/mifdirfan/climatetrack/internal/conversation"
	"github.com/mifdirfan/climatetrack/internal/embedder"
	"github.com/mifdirfan/climatetrack/internal/grounding"
	"github.com/mifdirfan/climatetrack/internal/ingestion"
	"github.com/mifdirfan/climatetrack/internal/rag"
	"github.com/mifdirfan/climatetrack/internal/server"
	"github.com/mifdirfan/climatetrack/internal/store"
	"github.com/mifdirfan/climatetrack/internal/tracing"
)

// pingable is implemented by every dependency that can probe itself.
type pingable interface {
	Ping(ctx context.Context) error
}

// indexStack is the write path shared by every command that ingests.
type indexStack struct {
	embedder rag.Embedder
	index    *rag.Index
	pipeline *ingestion.Pipeline
	sources  []ingestion.Source
	pingers  []server.Pinger
	closers  []func() error
}

// buildIndex wires embedder, optional Qdrant mirror, index and pipeline.
// sourcePaths overrides CT_PROSE_SOURCES and CT_TABULAR_SOURCES when
// non-empty.
func buildIndex(log *slog.Logger, reg prometheus.Registerer, sourcePaths []string) (*indexStack, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}
	st := &indexStack{embedder: emb}
	if p, ok := emb.(pingable); ok {
		st.pingers = append(st.pingers, server.NewPinger("embedder", p))
	}
	log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

	var mirror rag.Mirror
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		m, err := rag.NewQdrantMirror(rag.QdrantConfig{
			Host:       host,
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "climatetrack-chunks"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, err
		}
		mirror = m
		st.pingers = append(st.pingers, server.NewPinger("qdrant", m))
		st.closers = append(st.closers, m.Close)
		log.Info("qdrant mirror enabled", slog.String("host", host))
	}

	st.index, err = rag.NewIndex(emb, &rag.IndexConfig{Mirror: mirror, Logger: log, Registerer: reg})
	if err != nil {
		st.close()
		return nil, err
	}
	st.pipeline, err = ingestion.NewPipeline(st.index, &ingestion.Config{Logger: log, Registerer: reg})
	if err != nil {
		st.close()
		return nil, err
	}

	if len(sourcePaths) > 0 {
		for _, p := range sourcePaths {
			src, err := ingestion.InferSource(p)
			if err != nil {
				st.close()
				return nil, err
			}
			st.sources = append(st.sources, src)
		}
	} else {
		st.sources = ingestion.Sources(getEnvList("CT_PROSE_SOURCES"), getEnvList("CT_TABULAR_SOURCES"))
	}
	if len(st.sources) == 0 {
		log.Warn("no ingestion sources configured, set CT_PROSE_SOURCES or CT_TABULAR_SOURCES")
	}
	return st, nil
}

func (st *indexStack) close() {
	for i := len(st.closers) - 1; i >= 0; i-- {
		_ = st.closers[i]()
	}
}

// engine is the full read path: index, records, history, chat model and
// the conversation service on top.
type engine struct {
	*indexStack
	records   *store.RecordStore
	history   store.ConversationStore
	selection chat.Selection
	service   *conversation.Service
	flush     func()
}

// buildEngine wires everything a chatbot turn needs. The caller must call
// Close.
func buildEngine(ctx context.Context, log *slog.Logger, reg prometheus.Registerer, withHistory bool) (*engine, error) {
	flush, traced := tracing.Setup(tracing.SettingsFromEnv())
	if traced {
		log.Info("langfuse tracing enabled")
	}

	st, err := buildIndex(log, reg, nil)
	if err != nil {
		flush()
		return nil, err
	}
	e := &engine{indexStack: st, flush: flush}

	recordsPath, err := storePath("CT_RECORDS_DB", "records.db")
	if err != nil {
		e.Close()
		return nil, err
	}
	e.records, err = store.OpenRecords(recordsPath)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.closers = append(e.closers, e.records.Close)
	e.pingers = append(e.pingers, server.NewPinger("records", e.records))
	log.Info("records store opened", slog.String("path", recordsPath))

	if withHistory {
		e.history, err = openHistory(ctx, log)
		if err != nil {
			e.Close()
			return nil, err
		}
		if e.history != nil {
			e.closers = append(e.closers, e.history.Close)
			if p, ok := e.history.(pingable); ok {
				e.pingers = append(e.pingers, server.NewPinger("history", p))
			}
		}
	}

	model, sel, err := chat.NewFromEnv(ctx)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to initialise chat model: %w", err)
	}
	e.selection = sel
	instrumented := chat.Instrument(model, reg)
	if p, ok := instrumented.(pingable); ok && sel.Transport == chat.TransportNative {
		e.pingers = append([]server.Pinger{server.NewPinger("chat", p)}, e.pingers...)
	}
	log.Info("chat model initialised",
		slog.String("provider", string(sel.Backend)),
		slog.String("transport", string(sel.Transport)),
		slog.String("model", sel.Model),
	)

	topK := getEnvInt("CT_TOP_K", grounding.DefaultTopK)
	retriever, err := rag.NewRetriever(e.embedder, e.index, topK)
	if err != nil {
		e.Close()
		return nil, err
	}
	maxTokens := getEnvInt("CT_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens)
	assembler := grounding.NewAssembler(&grounding.AssemblerConfig{
		Records:   e.records,
		Retriever: retriever,
		RadiusKM:  getEnvFloat("CT_PROXIMITY_RADIUS_KM", grounding.DefaultRadiusKM),
		TopK:      topK,
		TopN:      getEnvInt("CT_TOP_N", grounding.DefaultTopN),
		MaxTokens: maxTokens,
		Logger:    log,
	})

	e.service, err = conversation.NewService(&conversation.Config{
		Context:    assembler,
		Model:      instrumented,
		MaxTokens:  maxTokens,
		Timeout:    chat.Timeout(),
		Logger:     log,
		Registerer: reg,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// Close releases stores and flushes traces.
func (e *engine) Close() {
	e.close()
	if e.flush != nil {
		e.flush()
	}
}

// openHistory selects the conversation store from CT_HISTORY_BACKEND.
// Returns nil when history is disabled.
func openHistory(ctx context.Context, log *slog.Logger) (store.ConversationStore, error) {
	switch backend := strings.ToLower(getEnvOrDefault("CT_HISTORY_BACKEND", "sqlite")); backend {
	case "disabled", "none":
		log.Info("history: disabled via CT_HISTORY_BACKEND")
		return nil, nil
	case "sqlite":
		path, err := storePath("CT_HISTORY_DB", "history.db")
		if err != nil {
			return nil, err
		}
		h, err := store.OpenHistory(path)
		if err != nil {
			return nil, err
		}
		log.Info("history: sqlite store opened", slog.String("path", path))
		return h, nil
	case "redis":
		addr := getEnvOrDefault("REDIS_ADDR", "localhost:6379")
		h, err := store.OpenRedisHistory(ctx, store.RedisConfig{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			return nil, err
		}
		log.Info("history: redis store opened", slog.String("addr", addr))
		return h, nil
	default:
		return nil, fmt.Errorf("unknown CT_HISTORY_BACKEND %q, valid values: sqlite, redis, disabled", backend)
	}
}

// storePath returns the path in envKey, or ~/.climatetrack/<name>.
func storePath(envKey, name string) (string, error) {
	if p := os.Getenv(envKey); p != "" {
		return p, nil
	}
	p, err := store.DefaultPath(name)
	if err != nil {
		return "", errors.Join(fmt.Errorf("set %s to choose a location", envKey), err)
	}
	return p, nil
}
