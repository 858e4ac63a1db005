package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"askbase/internal/config"
	"askbase/internal/ingest"
	"askbase/internal/middleware"
	"askbase/internal/worker"
)

// Document tracks one ingested source through its lifecycle. Status moves
// pending -> processing -> completed or failed; failed rows keep the reason
// in ErrorMessage.
type Document struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	UserID       int64  `json:"user_id"`
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	ChunkCount   int    `json:"chunk_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string, userID int64) (*Document, error)
	ListBySession(ctx context.Context, sessionID string, userID int64) ([]Document, error)

	MarkProcessing(ctx context.Context, documentID string) error
	MarkCompleted(ctx context.Context, documentID string, chunkCount int) error
	MarkFailed(ctx context.Context, documentID, reason string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  EventPublisher
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

// IngestFile registers an uploaded file as pending and hands the work to the
// queue. Publishing is fire-and-forget: the caller gets the pending document
// back immediately and polls its status.
func (s *Service) IngestFile(ctx context.Context, sessionID string, userID int64, filePath, fileName, contentType string) (*Document, error) {
	doc := &Document{
		SessionID: sessionID,
		UserID:    userID,
		Kind:      ingest.KindFile,
		Name:      fileName,
		Status:    StatusPending,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	s.dispatch(ctx, ingest.Task{
		DocumentID:  doc.ID,
		SessionID:   sessionID,
		UserID:      userID,
		Kind:        ingest.KindFile,
		FilePath:    filePath,
		FileName:    fileName,
		ContentType: contentType,
	})
	return doc, nil
}

// IngestURL registers a crawl task for the given URL. Zero crawl bounds mean
// the configured defaults.
func (s *Service) IngestURL(ctx context.Context, sessionID string, userID int64, url string, maxDepth, maxLinksPerPage int) (*Document, error) {
	doc := &Document{
		SessionID: sessionID,
		UserID:    userID,
		Kind:      ingest.KindURL,
		Name:      url,
		Status:    StatusPending,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	s.dispatch(ctx, ingest.Task{
		DocumentID:      doc.ID,
		SessionID:       sessionID,
		UserID:          userID,
		Kind:            ingest.KindURL,
		URL:             url,
		MaxDepth:        maxDepth,
		MaxLinksPerPage: maxLinksPerPage,
	})
	return doc, nil
}

func (s *Service) dispatch(ctx context.Context, task ingest.Task) {
	payload, _ := json.Marshal(worker.TaskEnvelope{
		Task:          task,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicIngest, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest task",
			"document_id", task.DocumentID, "error", err)
		// No worker will ever pick this task up; mark the row failed so
		// status polling does not show pending forever.
		reason := fmt.Sprintf("failed to queue ingestion task: %v", err)
		if markErr := s.repo.MarkFailed(ctx, task.DocumentID, reason); markErr != nil {
			slog.ErrorContext(ctx, "failed to record queue failure",
				"document_id", task.DocumentID, "error", markErr)
		}
		return
	}
	slog.InfoContext(ctx, "published ingest task",
		"document_id", task.DocumentID, "kind", task.Kind)
}

func (s *Service) Get(ctx context.Context, id string, userID int64) (*Document, error) {
	return s.repo.Get(ctx, id, userID)
}

func (s *Service) ListBySession(ctx context.Context, sessionID string, userID int64) ([]Document, error) {
	return s.repo.ListBySession(ctx, sessionID, userID)
}
