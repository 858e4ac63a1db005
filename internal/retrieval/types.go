package retrieval

import "context"

// SearchResult is one chunk returned from the vector store, scored against
// the query.
type SearchResult struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Source is the provenance record attached to an answer: where a supporting
// chunk came from plus a short preview of its text.
type Source struct {
	Label    string                 `json:"label"`
	Preview  string                 `json:"preview"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
	Err      error    `json:"-"`
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type SearchStore interface {
	Search(ctx context.Context, vector []float32, userID int64, limit int, threshold float64) ([]SearchResult, error)
}

type Reranker interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

type Generator interface {
	Generate(ctx context.Context, query, contextText, systemPrompt string) (string, error)
}
