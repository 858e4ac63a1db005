package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"askbase/internal/indexer"
	"askbase/internal/retrieval"
	"askbase/internal/vector"
)

// propForKey maps chunk payload keys to the Weaviate property names of the
// chunk class. Payload keys without a mapping are not persisted.
var propForKey = map[string]string{
	"text":        "text",
	"user_id":     "userId",
	"session_id":  "sessionId",
	"document_id": "documentId",
	"source":      "source",
	"title":       "title",
	"url":         "url",
	"depth":       "depth",
	"chunk_index": "chunkIndex",
	"chunk_type":  "chunkType",
	"json_path":   "jsonPath",
	"context":     "context",
}

var keyForProp = func() map[string]string {
	m := make(map[string]string, len(propForKey))
	for k, p := range propForKey {
		m[p] = k
	}
	return m
}()

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// Upsert writes all points in one batch call. Point ids become object ids,
// so re-indexing the same id replaces the object.
func (s *Store) Upsert(ctx context.Context, points []indexer.Point) error {
	objects := make([]*models.Object, len(points))
	for i, p := range points {
		props := make(map[string]interface{}, len(p.Payload))
		for key, val := range p.Payload {
			if prop, ok := propForKey[key]; ok {
				props[prop] = val
			}
		}
		objects[i] = &models.Object{
			Class:      vector.ClassName,
			ID:         strfmt.UUID(p.ID),
			Properties: props,
			Vector:     p.Vector,
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert error: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Search runs a nearVector query scoped to one user, keeping only results at
// or above the certainty threshold.
func (s *Store) Search(ctx context.Context, vec []float32, userID int64, limit int, threshold float64) ([]retrieval.SearchResult, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vec).
		WithCertainty(float32(threshold))

	where := filters.Where().
		WithPath([]string{"userId"}).
		WithOperator(filters.Equal).
		WithValueInt(userID)

	fields := make([]graphql.Field, 0, len(keyForProp)+1)
	for prop := range keyForProp {
		fields = append(fields, graphql.Field{Name: prop})
	}
	fields = append(fields, graphql.Field{
		Name:   "_additional",
		Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}},
	})

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []retrieval.SearchResult
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return results, nil
	}
	chunks, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return results, nil
	}

	for _, c := range chunks {
		props, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		result := retrieval.SearchResult{Metadata: make(map[string]interface{})}

		for prop, val := range props {
			if prop == "_additional" {
				continue
			}
			key, ok := keyForProp[prop]
			if !ok {
				continue
			}
			if key == "text" {
				if txt, ok := val.(string); ok {
					result.Text = txt
				}
				continue
			}
			result.Metadata[key] = val
		}

		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				result.ID = id
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				result.Score = certainty
			}
		}

		results = append(results, result)
	}
	return results, nil
}

// DeleteBySession removes every chunk indexed under a session.
func (s *Store) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"sessionId"}).
			WithOperator(filters.Equal).
			WithValueString(sessionID)).
		Do(ctx)
	return err
}
