package session

import (
	"context"
	"log/slog"
)

// Session groups the documents and conversations of one user workspace. Its
// system prompt, when set, steers answer generation for every query in the
// session.
type Session struct {
	ID           string `json:"id"`
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string, userID int64) (*Session, error)
	List(ctx context.Context, userID int64) ([]Session, error)
	UpdatePrompt(ctx context.Context, id string, userID int64, prompt string) error
	Delete(ctx context.Context, id string, userID int64) error
}

// VectorPurger removes everything a session indexed into the vector store.
type VectorPurger interface {
	DeleteBySession(ctx context.Context, sessionID string) error
}

type Service struct {
	repo   Repository
	purger VectorPurger
}

func NewService(repo Repository, purger VectorPurger) *Service {
	return &Service{repo: repo, purger: purger}
}

func (s *Service) Create(ctx context.Context, sess *Session) error {
	return s.repo.Save(ctx, sess)
}

func (s *Service) Get(ctx context.Context, id string, userID int64) (*Session, error) {
	return s.repo.Get(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID int64) ([]Session, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) UpdatePrompt(ctx context.Context, id string, userID int64, prompt string) error {
	return s.repo.UpdatePrompt(ctx, id, userID, prompt)
}

// SystemPrompt returns the prompt configured for a session, or empty when the
// session has none. Missing sessions also yield empty so a query can still
// run with the default prompt.
func (s *Service) SystemPrompt(ctx context.Context, id string, userID int64) string {
	sess, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		slog.DebugContext(ctx, "no session prompt found", "session_id", id, "error", err)
		return ""
	}
	return sess.SystemPrompt
}

// Delete removes the session row and purges its chunks from the vector
// store. The vector purge runs first so a failed purge leaves the session
// visible and retryable.
func (s *Service) Delete(ctx context.Context, id string, userID int64) error {
	if err := s.purger.DeleteBySession(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id, userID)
}
