package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"askbase/internal/text"
)

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Point is one embedded chunk ready for the vector store. Payload carries the
// chunk text plus its metadata and ownership scope.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

type VectorStore interface {
	Upsert(ctx context.Context, points []Point) error
}

// Indexer embeds chunks and writes them to the vector store, one batch call
// each way per invocation.
type Indexer struct {
	embedder Embedder
	store    VectorStore
}

func New(embedder Embedder, store VectorStore) *Indexer {
	return &Indexer{embedder: embedder, store: store}
}

// Index embeds every chunk in a single batch call and upserts the resulting
// points in a single batch write. Each point gets a fresh random id and its
// payload carries the chunk text, the chunk metadata and the owning session
// and user. Indexing zero chunks is a no-op.
func (ix *Indexer) Index(ctx context.Context, chunks []text.Chunk, sessionID string, userID int64) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	points := make([]Point, len(chunks))
	for i, c := range chunks {
		payload := maps.Clone(c.Metadata)
		if payload == nil {
			payload = map[string]any{}
		}
		payload["text"] = c.Text
		payload["session_id"] = sessionID
		payload["user_id"] = userID

		points[i] = Point{
			ID:      uuid.New().String(),
			Vector:  vectors[i],
			Payload: payload,
		}
	}

	if err := ix.store.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}

	slog.InfoContext(ctx, "indexed chunks", "count", len(points), "session_id", sessionID)
	return nil
}
