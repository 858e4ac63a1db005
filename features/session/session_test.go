package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionRepo struct {
	sess      *Session
	getErr    error
	deleted   bool
	deleteErr error
}

func (f *fakeSessionRepo) Save(ctx context.Context, s *Session) error {
	s.ID = "sess-new"
	return nil
}

func (f *fakeSessionRepo) Get(ctx context.Context, id string, userID int64) (*Session, error) {
	return f.sess, f.getErr
}

func (f *fakeSessionRepo) List(ctx context.Context, userID int64) ([]Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) UpdatePrompt(ctx context.Context, id string, userID int64, prompt string) error {
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id string, userID int64) error {
	f.deleted = true
	return f.deleteErr
}

type fakePurger struct {
	purged []string
	err    error
}

func (f *fakePurger) DeleteBySession(ctx context.Context, sessionID string) error {
	f.purged = append(f.purged, sessionID)
	return f.err
}

func TestSystemPrompt(t *testing.T) {
	t.Run("Configured prompt", func(t *testing.T) {
		repo := &fakeSessionRepo{sess: &Session{ID: "s1", SystemPrompt: "be terse"}}
		svc := NewService(repo, &fakePurger{})
		assert.Equal(t, "be terse", svc.SystemPrompt(context.Background(), "s1", 7))
	})

	t.Run("Missing session falls back to empty", func(t *testing.T) {
		repo := &fakeSessionRepo{getErr: sql.ErrNoRows}
		svc := NewService(repo, &fakePurger{})
		assert.Empty(t, svc.SystemPrompt(context.Background(), "nope", 7))
	})
}

func TestDelete(t *testing.T) {
	t.Run("Purges vectors before the row", func(t *testing.T) {
		repo := &fakeSessionRepo{}
		purger := &fakePurger{}
		svc := NewService(repo, purger)

		require.NoError(t, svc.Delete(context.Background(), "sess-1", 7))
		assert.Equal(t, []string{"sess-1"}, purger.purged)
		assert.True(t, repo.deleted)
	})

	t.Run("Failed purge leaves the session row", func(t *testing.T) {
		repo := &fakeSessionRepo{}
		purger := &fakePurger{err: errors.New("weaviate down")}
		svc := NewService(repo, purger)

		err := svc.Delete(context.Background(), "sess-1", 7)
		require.Error(t, err)
		assert.False(t, repo.deleted, "row must survive so the delete can be retried")
	})
}
