package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client scores documents against a query using a hosted reranking API.
// Scores come back ordered by input index so callers can pair them with
// their candidates directly.
type Client struct {
	apiKey   string
	provider string
	client   *http.Client
	baseURL  string
}

func NewClient(provider, apiKey string) *Client {
	return &Client{
		provider: provider,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *Client) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	switch c.provider {
	case "jina":
		return c.score(ctx, query, docs, "https://api.jina.ai/v1/rerank", map[string]interface{}{
			"model":     "jina-reranker-v1-base-en",
			"query":     query,
			"documents": docs,
			"top_n":     len(docs),
		})
	case "cohere":
		return c.score(ctx, query, docs, "https://api.cohere.ai/v1/rerank", map[string]interface{}{
			"model":            "rerank-english-v3.0",
			"query":            query,
			"documents":        docs,
			"top_n":            len(docs),
			"return_documents": false,
		})
	default:
		return nil, fmt.Errorf("unknown rerank provider: %s", c.provider)
	}
}

func (c *Client) score(ctx context.Context, query string, docs []string, url string, reqBody map[string]interface{}) ([]float64, error) {
	if c.baseURL != "" {
		url = c.baseURL
	}

	jsonBody, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%s api error: %d", c.provider, resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	// Providers return results sorted by relevance; re-key by input index.
	scores := make([]float64, len(docs))
	for _, r := range result.Results {
		if r.Index >= 0 && r.Index < len(docs) {
			scores[r.Index] = r.Score
		}
	}
	return scores, nil
}
