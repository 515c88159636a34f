package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointNamespace seeds the deterministic point IDs written to Qdrant.
var pointNamespace = uuid.MustParse("6f1c3a52-8d0e-4c4b-9a57-2f0d1b7e3c11")

// QdrantConfig holds connection parameters for the Qdrant mirror.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name (default: climatetrack-chunks).
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantMirror copies every indexed chunk into a Qdrant collection so the
// corpus can be inspected or reused outside the process. Queries are never
// served from Qdrant.
type QdrantMirror struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration.
	cfg QdrantConfig

	// ensureOnce guards lazy collection creation.
	ensureOnce sync.Once
	// ensureErr is the result of the one collection check.
	ensureErr error
}

// NewQdrantMirror connects to Qdrant. The collection is created on the first
// Upsert, once the embedding dimension is known.
func NewQdrantMirror(cfg QdrantConfig) (*QdrantMirror, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "climatetrack-chunks"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	return &QdrantMirror{client: client, cfg: cfg}, nil
}

// PointID returns the deterministic Qdrant point ID for chunk. Re-ingesting
// the same passage overwrites its previous point instead of duplicating it.
func PointID(chunk Chunk) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunk.Source+"\x00"+chunk.Text)).String()
}

// ensureCollection creates the collection with the given vector size if it
// does not already exist. Only the first call does any work.
func (m *QdrantMirror) ensureCollection(ctx context.Context, size int) error {
	m.ensureOnce.Do(func() {
		exists, err := m.client.CollectionExists(ctx, m.cfg.Collection)
		if err != nil {
			m.ensureErr = fmt.Errorf("qdrant: failed to check collection existence: %w", err)
			return
		}
		if exists {
			return
		}
		err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: m.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(size),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			m.ensureErr = fmt.Errorf("qdrant: failed to create collection %q: %w", m.cfg.Collection, err)
		}
	})
	return m.ensureErr
}

// Upsert writes chunk and its embedding as a single point.
func (m *QdrantMirror) Upsert(ctx context.Context, chunk Chunk, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("qdrant: refusing to upsert empty vector")
	}
	if err := m.ensureCollection(ctx, len(embedding)); err != nil {
		return err
	}

	_, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: m.cfg.Collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(PointID(chunk)),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content": chunk.Text,
				"source":  chunk.Source,
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Ping reports whether the Qdrant server answers a health check.
func (m *QdrantMirror) Ping(ctx context.Context) error {
	if _, err := m.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (m *QdrantMirror) Close() error {
	return m.client.Close()
}
