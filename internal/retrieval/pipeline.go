package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// NoInfoResponse is returned verbatim when no chunk survives retrieval and
// reranking. The generator is never called in that case.
const NoInfoResponse = "I couldn't find any relevant information to answer your question."

const (
	maxSources    = 3
	previewLength = 200
)

// State carries a query through the pipeline. Each stage reads what earlier
// stages produced and fills in its own field. Stages are fault-isolated: a
// failing stage records Err and leaves a usable fallback, so every run ends
// with a response.
type State struct {
	Query        string
	UserID       int64
	SystemPrompt string

	Retrieved []SearchResult
	Reranked  []SearchResult
	Context   string
	Response  string

	Err error
}

type stage struct {
	name string
	run  func(ctx context.Context, s *State)
}

// Pipeline answers a query in four ordered stages: retrieve candidates from
// the vector store, rerank them, assemble the context window, and generate
// the final response. The stage list is explicit so the order is visible in
// one place and each stage stays independently testable.
type Pipeline struct {
	embedder  QueryEmbedder
	store     SearchStore
	reranker  Reranker
	generator Generator
	logger    *QueryLogger

	candidates int
	topK       int
	threshold  float64

	stages []stage
}

type Config struct {
	Candidates int
	TopK       int
	Threshold  float64
}

// NewPipeline wires the stages. A nil reranker disables reranking and the
// retrieval ordering is used as-is.
func NewPipeline(e QueryEmbedder, st SearchStore, r Reranker, g Generator, l *QueryLogger, cfg Config) *Pipeline {
	p := &Pipeline{
		embedder:   e,
		store:      st,
		reranker:   r,
		generator:  g,
		logger:     l,
		candidates: cfg.Candidates,
		topK:       cfg.TopK,
		threshold:  cfg.Threshold,
	}
	if p.candidates <= 0 {
		p.candidates = 20
	}
	if p.topK <= 0 {
		p.topK = 5
	}
	p.stages = []stage{
		{name: "retrieve", run: p.retrieve},
		{name: "rerank", run: p.rerank},
		{name: "prepare_context", run: p.prepareContext},
		{name: "generate", run: p.generate},
	}
	return p
}

// Answer runs the full pipeline for one query and returns the response with
// up to three supporting sources.
func (p *Pipeline) Answer(ctx context.Context, query string, userID int64, systemPrompt string) Result {
	start := time.Now()
	s := &State{Query: query, UserID: userID, SystemPrompt: systemPrompt}

	for _, st := range p.stages {
		st.run(ctx, s)
	}

	result := Result{Response: s.Response, Sources: sources(s.Reranked), Err: s.Err}

	// Degraded runs are logged too; those are the ones worth reviewing.
	if p.logger != nil {
		entry := QueryLogEntry{
			Query:      query,
			UserID:     userID,
			NumResults: len(s.Reranked),
			Duration:   time.Since(start),
		}
		if s.Err != nil {
			entry.Error = s.Err.Error()
		}
		p.logger.Log(entry)
	}
	return result
}

// retrieve embeds the query and searches the vector store. Failures leave the
// retrieved set empty and the pipeline continues to the no-information answer.
func (p *Pipeline) retrieve(ctx context.Context, s *State) {
	vec, err := p.embedder.EmbedQuery(ctx, s.Query)
	if err != nil {
		slog.ErrorContext(ctx, "query embedding failed", "error", err)
		s.Err = fmt.Errorf("embed query: %w", err)
		return
	}

	docs, err := p.store.Search(ctx, vec, s.UserID, p.candidates, p.threshold)
	if err != nil {
		slog.ErrorContext(ctx, "vector search failed", "error", err)
		s.Err = fmt.Errorf("vector search: %w", err)
		return
	}
	s.Retrieved = docs
}

// rerank scores the candidates and keeps the best topK. Cross-encoder scores
// are not on the certainty scale the retrieval threshold uses, so no further
// filtering happens here. A reranker failure degrades to the vector-store
// ordering instead of failing the query.
func (p *Pipeline) rerank(ctx context.Context, s *State) {
	if len(s.Retrieved) == 0 {
		return
	}
	if p.reranker == nil {
		s.Reranked = top(s.Retrieved, p.topK)
		return
	}

	docs := make([]string, len(s.Retrieved))
	for i, d := range s.Retrieved {
		docs[i] = d.Text
	}

	scores, err := p.reranker.Score(ctx, s.Query, docs)
	if err != nil || len(scores) != len(s.Retrieved) {
		slog.WarnContext(ctx, "rerank failed, falling back to vector ordering", "error", err)
		s.Reranked = top(s.Retrieved, p.topK)
		return
	}

	rescored := make([]SearchResult, len(s.Retrieved))
	copy(rescored, s.Retrieved)
	for i := range rescored {
		rescored[i].Score = scores[i]
	}
	// Stable sort keeps the retrieval order for equal scores.
	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Score > rescored[j].Score
	})
	s.Reranked = top(rescored, p.topK)
}

func (p *Pipeline) prepareContext(ctx context.Context, s *State) {
	if len(s.Reranked) == 0 {
		s.Response = NoInfoResponse
		return
	}

	parts := make([]string, len(s.Reranked))
	for i, d := range s.Reranked {
		parts[i] = fmt.Sprintf("[Source: %s]\n%s", sourceLabel(d.Metadata), d.Text)
	}
	s.Context = strings.Join(parts, "\n\n")
}

func (p *Pipeline) generate(ctx context.Context, s *State) {
	// prepareContext already answered when nothing was found.
	if s.Response != "" {
		return
	}

	resp, err := p.generator.Generate(ctx, s.Query, s.Context, s.SystemPrompt)
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err)
		s.Err = fmt.Errorf("generate: %w", err)
		s.Response = fmt.Sprintf("I'm sorry, I encountered an error while generating a response: %v", err)
		return
	}
	s.Response = resp
}

func top(docs []SearchResult, k int) []SearchResult {
	if len(docs) > k {
		return docs[:k]
	}
	return docs
}

func sourceLabel(meta map[string]interface{}) string {
	for _, key := range []string{"title", "url", "source"} {
		if v, ok := meta[key].(string); ok && v != "" {
			return v
		}
	}
	return "Unknown"
}

func sources(docs []SearchResult) []Source {
	n := len(docs)
	if n > maxSources {
		n = maxSources
	}
	out := make([]Source, 0, n)
	for _, d := range docs[:n] {
		preview := d.Text
		if runes := []rune(preview); len(runes) > previewLength {
			preview = string(runes[:previewLength]) + "..."
		}
		out = append(out, Source{
			Label:    sourceLabel(d.Metadata),
			Preview:  preview,
			Score:    d.Score,
			Metadata: d.Metadata,
		})
	}
	return out
}
