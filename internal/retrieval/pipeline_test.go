package retrieval_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"askbase/internal/retrieval"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockStore struct{ mock.Mock }

func (m *MockStore) Search(ctx context.Context, vector []float32, userID int64, limit int, threshold float64) ([]retrieval.SearchResult, error) {
	args := m.Called(ctx, vector, userID, limit, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.SearchResult), args.Error(1)
}

type MockReranker struct{ mock.Mock }

func (m *MockReranker) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	args := m.Called(ctx, query, docs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, query, contextText, systemPrompt string) (string, error) {
	args := m.Called(ctx, query, contextText, systemPrompt)
	return args.String(0), args.Error(1)
}

func docs(texts ...string) []retrieval.SearchResult {
	out := make([]retrieval.SearchResult, len(texts))
	for i, txt := range texts {
		out[i] = retrieval.SearchResult{Text: txt, Score: 0.9, Metadata: map[string]interface{}{"title": "Doc " + txt}}
	}
	return out
}

func newPipeline(e *MockEmbedder, s *MockStore, r retrieval.Reranker, g *MockGenerator) *retrieval.Pipeline {
	return retrieval.NewPipeline(e, s, r, g, nil, retrieval.Config{Candidates: 20, TopK: 5, Threshold: 0.5})
}

func TestAnswer(t *testing.T) {
	t.Run("Full run reranks, assembles context and generates", func(t *testing.T) {
		e, s, r, g := &MockEmbedder{}, &MockStore{}, &MockReranker{}, &MockGenerator{}

		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, []float32{0.1}, int64(7), 20, 0.5).
			Return(docs("A", "B", "C"), nil)
		r.On("Score", mock.Anything, "q", []string{"A", "B", "C"}).
			Return([]float64{0.6, 0.95, 0.2}, nil)
		g.On("Generate", mock.Anything, "q", mock.MatchedBy(func(ctx string) bool {
			// Rerank order: B, A, C.
			return strings.Index(ctx, "Doc B") < strings.Index(ctx, "Doc A") &&
				strings.Index(ctx, "Doc A") < strings.Index(ctx, "Doc C")
		}), "be nice").Return("answer", nil)

		res := newPipeline(e, s, r, g).Answer(context.Background(), "q", 7, "be nice")

		require.NoError(t, res.Err)
		assert.Equal(t, "answer", res.Response)
		require.Len(t, res.Sources, 3)
		assert.Equal(t, "Doc B", res.Sources[0].Label)
		assert.InDelta(t, 0.95, res.Sources[0].Score, 1e-9)
	})

	t.Run("Empty store answers without the generator", func(t *testing.T) {
		e, s, g := &MockEmbedder{}, &MockStore{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, mock.Anything, int64(1), 20, 0.5).
			Return([]retrieval.SearchResult{}, nil)

		res := newPipeline(e, s, nil, g).Answer(context.Background(), "q", 1, "")

		require.NoError(t, res.Err)
		assert.Equal(t, retrieval.NoInfoResponse, res.Response)
		assert.Empty(t, res.Sources)
		g.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Low rerank scores still generate from the top candidates", func(t *testing.T) {
		// Cross-encoder scores live on their own scale; the retrieval
		// threshold must not prune reranked candidates.
		e, s, r, g := &MockEmbedder{}, &MockStore{}, &MockReranker{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, mock.Anything, int64(1), 20, 0.5).
			Return(docs("A", "B"), nil)
		r.On("Score", mock.Anything, "q", mock.Anything).Return([]float64{0.45, 0.40}, nil)
		g.On("Generate", mock.Anything, "q", mock.MatchedBy(func(ctx string) bool {
			return strings.Contains(ctx, "Doc A") && strings.Contains(ctx, "Doc B")
		}), "").Return("answer", nil)

		res := newPipeline(e, s, r, g).Answer(context.Background(), "q", 1, "")

		require.NoError(t, res.Err)
		assert.Equal(t, "answer", res.Response)
		require.Len(t, res.Sources, 2)
		assert.Equal(t, "Doc A", res.Sources[0].Label)
	})

	t.Run("Reranker failure degrades to vector ordering", func(t *testing.T) {
		e, s, r, g := &MockEmbedder{}, &MockStore{}, &MockReranker{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, mock.Anything, int64(1), 20, 0.5).
			Return(docs("A", "B", "C", "D", "E", "F"), nil)
		r.On("Score", mock.Anything, "q", mock.Anything).Return(nil, errors.New("rerank down"))
		g.On("Generate", mock.Anything, "q", mock.Anything, "").Return("degraded answer", nil)

		res := newPipeline(e, s, r, g).Answer(context.Background(), "q", 1, "")

		require.NoError(t, res.Err)
		assert.Equal(t, "degraded answer", res.Response)
		require.Len(t, res.Sources, 3)
		assert.Equal(t, "Doc A", res.Sources[0].Label)
	})

	t.Run("Nil reranker keeps store ordering capped at topK", func(t *testing.T) {
		e, s, g := &MockEmbedder{}, &MockStore{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, mock.Anything, int64(1), 20, 0.5).
			Return(docs("A", "B", "C", "D", "E", "F", "G"), nil)
		g.On("Generate", mock.Anything, "q", mock.MatchedBy(func(ctx string) bool {
			return strings.Contains(ctx, "Doc E") && !strings.Contains(ctx, "Doc F")
		}), "").Return("ok", nil)

		res := newPipeline(e, s, nil, g).Answer(context.Background(), "q", 1, "")
		require.NoError(t, res.Err)
		assert.Equal(t, "ok", res.Response)
	})

	t.Run("Equal rerank scores keep retrieval order", func(t *testing.T) {
		e, s, r, g := &MockEmbedder{}, &MockStore{}, &MockReranker{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, mock.Anything, int64(1), 20, 0.5).
			Return(docs("A", "B", "C"), nil)
		r.On("Score", mock.Anything, "q", mock.Anything).Return([]float64{0.7, 0.7, 0.7}, nil)
		g.On("Generate", mock.Anything, "q", mock.Anything, "").Return("ok", nil)

		res := newPipeline(e, s, r, g).Answer(context.Background(), "q", 1, "")
		require.NoError(t, res.Err)
		require.Len(t, res.Sources, 3)
		assert.Equal(t, "Doc A", res.Sources[0].Label)
		assert.Equal(t, "Doc B", res.Sources[1].Label)
		assert.Equal(t, "Doc C", res.Sources[2].Label)
	})

	t.Run("Embed failure still answers", func(t *testing.T) {
		e, s, g := &MockEmbedder{}, &MockStore{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return(nil, errors.New("embed down"))

		res := newPipeline(e, s, nil, g).Answer(context.Background(), "q", 1, "")
		assert.ErrorContains(t, res.Err, "embed down")
		assert.Equal(t, retrieval.NoInfoResponse, res.Response)
		s.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Search failure still answers", func(t *testing.T) {
		e, s, g := &MockEmbedder{}, &MockStore{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, mock.Anything, int64(1), 20, 0.5).
			Return(nil, errors.New("store down"))

		res := newPipeline(e, s, nil, g).Answer(context.Background(), "q", 1, "")
		assert.ErrorContains(t, res.Err, "store down")
		assert.Equal(t, retrieval.NoInfoResponse, res.Response)
		assert.Empty(t, res.Sources)
		g.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Generator failure yields an apologetic response", func(t *testing.T) {
		e, s, g := &MockEmbedder{}, &MockStore{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, mock.Anything, int64(1), 20, 0.5).
			Return(docs("A"), nil)
		g.On("Generate", mock.Anything, "q", mock.Anything, "").Return("", errors.New("llm down"))

		res := newPipeline(e, s, nil, g).Answer(context.Background(), "q", 1, "")
		assert.ErrorContains(t, res.Err, "llm down")
		assert.Contains(t, res.Response, "I'm sorry")
		assert.Contains(t, res.Response, "llm down")
	})

	t.Run("Degraded queries are logged with the error", func(t *testing.T) {
		var buf bytes.Buffer
		e, s, g := &MockEmbedder{}, &MockStore{}, &MockGenerator{}
		e.On("EmbedQuery", mock.Anything, "q").Return(nil, errors.New("embed down"))

		p := retrieval.NewPipeline(e, s, nil, g, retrieval.NewQueryLogger(&buf),
			retrieval.Config{Candidates: 20, TopK: 5, Threshold: 0.5})
		res := p.Answer(context.Background(), "q", 1, "")
		require.Error(t, res.Err)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "q", entry["query"])
		assert.Contains(t, entry["error"], "embed down")
	})

	t.Run("Source previews truncate at 200 characters", func(t *testing.T) {
		e, s, g := &MockEmbedder{}, &MockStore{}, &MockGenerator{}
		long := strings.Repeat("x", 500)
		e.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1}, nil)
		s.On("Search", mock.Anything, mock.Anything, int64(1), 20, 0.5).
			Return([]retrieval.SearchResult{{Text: long, Score: 0.9, Metadata: map[string]interface{}{"url": "https://e.x"}}}, nil)
		g.On("Generate", mock.Anything, "q", mock.Anything, "").Return("ok", nil)

		res := newPipeline(e, s, nil, g).Answer(context.Background(), "q", 1, "")
		require.NoError(t, res.Err)
		require.Len(t, res.Sources, 1)
		assert.Equal(t, strings.Repeat("x", 200)+"...", res.Sources[0].Preview)
		assert.Equal(t, "https://e.x", res.Sources[0].Label)
	})
}

func TestQueryLogger(t *testing.T) {
	var buf bytes.Buffer
	l := retrieval.NewQueryLogger(&buf)
	l.Log(retrieval.QueryLogEntry{Query: "hello", UserID: 9, NumResults: 2})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["query"])
	assert.Equal(t, float64(9), entry["user_id"])
	assert.Equal(t, float64(2), entry["num_results"])
	assert.NotEmpty(t, entry["timestamp"])
}
