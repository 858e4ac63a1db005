package weaviate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askbase/internal/indexer"
	"askbase/internal/testutils"
	"askbase/internal/vector"
)

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	ctx := context.Background()
	require.NoError(t, vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(suite.Weaviate)))

	store := NewStore(suite.Weaviate)
	sessionID := uuid.NewString()

	points := []indexer.Point{
		{
			ID:     uuid.NewString(),
			Vector: []float32{1, 0, 0, 0},
			Payload: map[string]any{
				"text": "about apples", "session_id": sessionID, "user_id": int64(7),
				"source": "a.txt", "chunk_index": 0,
			},
		},
		{
			ID:     uuid.NewString(),
			Vector: []float32{0, 1, 0, 0},
			Payload: map[string]any{
				"text": "about oranges", "session_id": sessionID, "user_id": int64(7),
				"source": "a.txt", "chunk_index": 1,
			},
		},
		{
			ID:     uuid.NewString(),
			Vector: []float32{1, 0, 0, 0},
			Payload: map[string]any{
				"text": "someone else's apples", "session_id": uuid.NewString(), "user_id": int64(99),
				"source": "b.txt", "chunk_index": 0,
			},
		},
	}
	require.NoError(t, store.Upsert(ctx, points))

	// An identical vector has certainty 1, an orthogonal one 0.5.
	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 7, 10, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1, "threshold keeps only the matching vector, user filter hides the other tenant")
	assert.Equal(t, "about apples", results[0].Text)
	assert.Equal(t, sessionID, results[0].Metadata["session_id"])
	assert.InDelta(t, 1.0, results[0].Score, 1e-3)

	require.NoError(t, store.DeleteBySession(ctx, sessionID))

	results, err = store.Search(ctx, []float32{1, 0, 0, 0}, 7, 10, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results, "purged session leaves nothing behind")
}
