package document

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askbase/internal/config"
	"askbase/internal/ingest"
	"askbase/internal/middleware"
	"askbase/internal/worker"
)

type fakeRepo struct {
	saved        *Document
	saveErr      error
	doc          *Document
	getErr       error
	failedID     string
	failedReason string
}

func (f *fakeRepo) Save(ctx context.Context, doc *Document) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	doc.ID = "doc-new"
	doc.CreatedAt = "t0"
	doc.UpdatedAt = "t0"
	f.saved = doc
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string, userID int64) (*Document, error) {
	return f.doc, f.getErr
}

func (f *fakeRepo) ListBySession(ctx context.Context, sessionID string, userID int64) ([]Document, error) {
	if f.doc == nil {
		return nil, nil
	}
	return []Document{*f.doc}, nil
}

func (f *fakeRepo) MarkProcessing(ctx context.Context, documentID string) error { return nil }
func (f *fakeRepo) MarkCompleted(ctx context.Context, documentID string, chunkCount int) error {
	return nil
}
func (f *fakeRepo) MarkFailed(ctx context.Context, documentID, reason string) error {
	f.failedID = documentID
	f.failedReason = reason
	return nil
}

type fakePublisher struct {
	topic string
	body  []byte
	err   error
}

func (f *fakePublisher) Publish(topic string, body []byte) error {
	f.topic = topic
	f.body = body
	return f.err
}

func TestIngestFile(t *testing.T) {
	t.Run("Saves pending and publishes an envelope", func(t *testing.T) {
		repo := &fakeRepo{}
		pub := &fakePublisher{}
		svc := NewService(repo, pub)

		ctx := middleware.WithCorrelationID(context.Background(), "corr-1")
		doc, err := svc.IngestFile(ctx, "sess-1", 7, "/tmp/up/x_a.txt", "a.txt", "text/plain")
		require.NoError(t, err)

		assert.Equal(t, StatusPending, doc.Status)
		assert.Equal(t, ingest.KindFile, doc.Kind)
		assert.Equal(t, config.TopicIngest, pub.topic)

		var envelope worker.TaskEnvelope
		require.NoError(t, json.Unmarshal(pub.body, &envelope))
		assert.Equal(t, "doc-new", envelope.Task.DocumentID)
		assert.Equal(t, "/tmp/up/x_a.txt", envelope.Task.FilePath)
		assert.Equal(t, "corr-1", envelope.CorrelationID)
	})

	t.Run("Publish failure marks the document failed", func(t *testing.T) {
		repo := &fakeRepo{}
		pub := &fakePublisher{err: errors.New("nsqd down")}
		doc, err := NewService(repo, pub).IngestFile(context.Background(), "s", 1, "/tmp/x", "x.txt", "")
		require.NoError(t, err, "the caller still gets the document back")

		assert.Equal(t, doc.ID, repo.failedID, "a task no worker will see must not stay pending")
		assert.Contains(t, repo.failedReason, "failed to queue ingestion task")
		assert.Contains(t, repo.failedReason, "nsqd down")
	})

	t.Run("Save failure does not publish", func(t *testing.T) {
		repo := &fakeRepo{saveErr: errors.New("db down")}
		pub := &fakePublisher{}
		_, err := NewService(repo, pub).IngestFile(context.Background(), "s", 1, "/tmp/x", "x.txt", "")
		require.Error(t, err)
		assert.Empty(t, pub.topic)
	})
}

func TestIngestURLService(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	doc, err := NewService(repo, pub).IngestURL(context.Background(), "sess-1", 7, "https://docs.example/", 2, 10)
	require.NoError(t, err)

	assert.Equal(t, ingest.KindURL, doc.Kind)
	assert.Equal(t, "https://docs.example/", doc.Name)

	var envelope worker.TaskEnvelope
	require.NoError(t, json.Unmarshal(pub.body, &envelope))
	assert.Equal(t, "https://docs.example/", envelope.Task.URL)
	assert.Equal(t, int64(7), envelope.Task.UserID)
	assert.Equal(t, 2, envelope.Task.MaxDepth)
	assert.Equal(t, 10, envelope.Task.MaxLinksPerPage)
}

func multipartBody(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, fileName, content string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, fileName, content)
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/file/sess-1", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("session_id", "sess-1")
	return req.WithContext(middleware.WithUserID(req.Context(), 7))
}

func TestUploadHandler(t *testing.T) {
	t.Run("Accepted upload is staged and queued", func(t *testing.T) {
		repo := &fakeRepo{}
		pub := &fakePublisher{}
		dir := t.TempDir()
		h := NewHandler(NewService(repo, pub), dir, 1<<20)

		rec := httptest.NewRecorder()
		h.Upload(rec, uploadRequest(t, "notes.txt", "some notes"))

		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp struct {
			Data Document `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "doc-new", resp.Data.ID)
		assert.Equal(t, StatusPending, resp.Data.Status)
		assert.Equal(t, "sess-1", repo.saved.SessionID)
		assert.Equal(t, int64(7), repo.saved.UserID)

		var envelope worker.TaskEnvelope
		require.NoError(t, json.Unmarshal(pub.body, &envelope))
		assert.Equal(t, dir, filepath.Dir(envelope.Task.FilePath))
		assert.True(t, strings.HasSuffix(envelope.Task.FilePath, "_notes.txt"))

		staged, err := os.ReadFile(envelope.Task.FilePath)
		require.NoError(t, err)
		assert.Equal(t, "some notes", string(staged))
	})

	t.Run("Unsupported extension is rejected", func(t *testing.T) {
		h := NewHandler(NewService(&fakeRepo{}, &fakePublisher{}), t.TempDir(), 1<<20)
		rec := httptest.NewRecorder()
		h.Upload(rec, uploadRequest(t, "malware.exe", "nope"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Unsupported file type")
	})

	t.Run("Service failure cleans up the staged file", func(t *testing.T) {
		dir := t.TempDir()
		h := NewHandler(NewService(&fakeRepo{saveErr: errors.New("db down")}, &fakePublisher{}), dir, 1<<20)
		rec := httptest.NewRecorder()
		h.Upload(rec, uploadRequest(t, "notes.txt", "some notes"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "staged file must be removed when the service rejects the upload")
	})
}

func TestIngestURLHandler(t *testing.T) {
	newReq := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/ingest/url", strings.NewReader(body))
		return req.WithContext(middleware.WithUserID(req.Context(), 7))
	}

	t.Run("Accepted", func(t *testing.T) {
		pub := &fakePublisher{}
		h := NewHandler(NewService(&fakeRepo{}, pub), t.TempDir(), 1<<20)
		rec := httptest.NewRecorder()
		h.IngestURL(rec, newReq(`{"session_id":"sess-1","url":"https://docs.example/","max_depth":2,"max_links_per_page":5}`))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, config.TopicIngest, pub.topic)

		var envelope worker.TaskEnvelope
		require.NoError(t, json.Unmarshal(pub.body, &envelope))
		assert.Equal(t, 2, envelope.Task.MaxDepth)
		assert.Equal(t, 5, envelope.Task.MaxLinksPerPage)
	})

	t.Run("Crawl bounds default when omitted", func(t *testing.T) {
		pub := &fakePublisher{}
		h := NewHandler(NewService(&fakeRepo{}, pub), t.TempDir(), 1<<20)
		rec := httptest.NewRecorder()
		h.IngestURL(rec, newReq(`{"session_id":"sess-1","url":"https://docs.example/"}`))

		assert.Equal(t, http.StatusAccepted, rec.Code)

		var envelope worker.TaskEnvelope
		require.NoError(t, json.Unmarshal(pub.body, &envelope))
		assert.Zero(t, envelope.Task.MaxDepth)
		assert.Zero(t, envelope.Task.MaxLinksPerPage)
	})

	t.Run("Negative crawl bounds are rejected", func(t *testing.T) {
		h := NewHandler(NewService(&fakeRepo{}, &fakePublisher{}), t.TempDir(), 1<<20)
		rec := httptest.NewRecorder()
		h.IngestURL(rec, newReq(`{"session_id":"s","url":"https://docs.example/","max_depth":-1}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Missing session is rejected", func(t *testing.T) {
		h := NewHandler(NewService(&fakeRepo{}, &fakePublisher{}), t.TempDir(), 1<<20)
		rec := httptest.NewRecorder()
		h.IngestURL(rec, newReq(`{"url":"https://docs.example/"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Non-http scheme is rejected", func(t *testing.T) {
		h := NewHandler(NewService(&fakeRepo{}, &fakePublisher{}), t.TempDir(), 1<<20)
		rec := httptest.NewRecorder()
		h.IngestURL(rec, newReq(`{"session_id":"s","url":"ftp://files.example/"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatusHandler(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo := &fakeRepo{doc: &Document{ID: "doc-1", Status: StatusCompleted, ChunkCount: 5}}
		h := NewHandler(NewService(repo, &fakePublisher{}), t.TempDir(), 1<<20)

		req := httptest.NewRequest(http.MethodGet, "/api/documents/status/doc-1", nil)
		req.SetPathValue("id", "doc-1")
		rec := httptest.NewRecorder()
		h.Status(rec, req.WithContext(middleware.WithUserID(req.Context(), 7)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"completed"`)
	})

	t.Run("Missing is 404", func(t *testing.T) {
		repo := &fakeRepo{getErr: sql.ErrNoRows}
		h := NewHandler(NewService(repo, &fakePublisher{}), t.TempDir(), 1<<20)

		req := httptest.NewRequest(http.MethodGet, "/api/documents/status/nope", nil)
		req.SetPathValue("id", "nope")
		rec := httptest.NewRecorder()
		h.Status(rec, req.WithContext(middleware.WithUserID(req.Context(), 7)))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
