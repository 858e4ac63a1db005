package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"askbase/internal/crawler"
	"askbase/internal/structured"
	"askbase/internal/text"
)

// Task describes one unit of ingestion work handed over from the API through
// the queue. Kind selects the flow; the file fields are set for uploads, URL
// for crawls.
type Task struct {
	DocumentID  string `json:"document_id"`
	SessionID   string `json:"session_id"`
	UserID      int64  `json:"user_id"`
	Kind        string `json:"kind"`
	FilePath    string `json:"file_path,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`

	// Crawl bounds for URL tasks; zero means the configured default.
	MaxDepth        int `json:"max_depth,omitempty"`
	MaxLinksPerPage int `json:"max_links_per_page,omitempty"`
}

const (
	KindFile = "file"
	KindURL  = "url"
)

type Crawler interface {
	Crawl(ctx context.Context, startURL string, maxDepth, maxLinksPerPage int) []crawler.PageRecord
}

type Indexer interface {
	Index(ctx context.Context, chunks []text.Chunk, sessionID string, userID int64) error
}

// StatusStore persists document lifecycle transitions. Every processed task
// ends in exactly one terminal write, completed or failed.
type StatusStore interface {
	MarkProcessing(ctx context.Context, documentID string) error
	MarkCompleted(ctx context.Context, documentID string, chunkCount int) error
	MarkFailed(ctx context.Context, documentID, reason string) error
}

// Coordinator turns a queued task into indexed chunks: it picks the right
// extraction and chunking flow for the content, runs the indexer, and records
// the outcome on the document row.
type Coordinator struct {
	crawler   Crawler
	splitter  text.Splitter
	converter structured.Converter
	indexer   Indexer
	statuses  StatusStore

	maxDepth        int
	maxLinksPerPage int
}

func NewCoordinator(cr Crawler, sp text.Splitter, cv structured.Converter, ix Indexer, st StatusStore, maxDepth, maxLinksPerPage int) *Coordinator {
	return &Coordinator{
		crawler:         cr,
		splitter:        sp,
		converter:       cv,
		indexer:         ix,
		statuses:        st,
		maxDepth:        maxDepth,
		maxLinksPerPage: maxLinksPerPage,
	}
}

// Process dispatches a task by kind.
func (c *Coordinator) Process(ctx context.Context, t Task) error {
	switch t.Kind {
	case KindFile:
		return c.ProcessFile(ctx, t)
	case KindURL:
		return c.ProcessURL(ctx, t)
	default:
		return fmt.Errorf("unknown task kind: %s", t.Kind)
	}
}

// ProcessFile ingests an uploaded file. The temp file is removed on every
// path, success or failure.
func (c *Coordinator) ProcessFile(ctx context.Context, t Task) error {
	defer c.removeTemp(ctx, t.FilePath)

	if err := c.statuses.MarkProcessing(ctx, t.DocumentID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	chunks, err := c.fileChunks(ctx, t)
	if err != nil {
		return c.fail(ctx, t.DocumentID, err)
	}

	if err := c.indexer.Index(ctx, chunks, t.SessionID, t.UserID); err != nil {
		return c.fail(ctx, t.DocumentID, err)
	}
	return c.statuses.MarkCompleted(ctx, t.DocumentID, len(chunks))
}

// ProcessURL crawls the task URL and indexes every fetched page.
func (c *Coordinator) ProcessURL(ctx context.Context, t Task) error {
	if err := c.statuses.MarkProcessing(ctx, t.DocumentID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	maxDepth := c.maxDepth
	if t.MaxDepth > 0 {
		maxDepth = t.MaxDepth
	}
	maxLinks := c.maxLinksPerPage
	if t.MaxLinksPerPage > 0 {
		maxLinks = t.MaxLinksPerPage
	}

	pages := c.crawler.Crawl(ctx, t.URL, maxDepth, maxLinks)
	if len(pages) == 0 {
		return c.fail(ctx, t.DocumentID, fmt.Errorf("no content extracted from %s", t.URL))
	}

	var chunks []text.Chunk
	for _, page := range pages {
		meta := map[string]any{
			"document_id": t.DocumentID,
			"source":      page.URL,
			"url":         page.URL,
			"title":       page.Title,
			"depth":       page.Depth,
		}
		chunks = append(chunks, c.splitter.SplitDocuments(page.Text, meta)...)
	}
	numberChunks(chunks)

	if err := c.indexer.Index(ctx, chunks, t.SessionID, t.UserID); err != nil {
		return c.fail(ctx, t.DocumentID, err)
	}
	return c.statuses.MarkCompleted(ctx, t.DocumentID, len(chunks))
}

// fileChunks reads the upload and picks the chunking flow: declared JSON or
// PDF first, then a content sniff, then plain text as the catch-all. JSON
// that fails structural conversion degrades to plain-text chunking.
func (c *Coordinator) fileChunks(ctx context.Context, t Task) ([]text.Chunk, error) {
	meta := map[string]any{
		"document_id": t.DocumentID,
		"source":      t.FileName,
	}

	if isPDF(t.FileName, t.ContentType) {
		content, err := extractPDF(t.FilePath)
		if err != nil {
			return nil, fmt.Errorf("extract pdf: %w", err)
		}
		chunks := c.splitter.SplitDocuments(content, meta)
		numberChunks(chunks)
		return chunks, nil
	}

	raw, err := os.ReadFile(t.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	content := string(raw)

	if isJSON(t.FileName, t.ContentType) || sniffJSON(content) {
		chunks, err := c.converter.Convert(content, meta)
		if err == nil {
			numberChunks(chunks)
			return chunks, nil
		}
		if !errors.Is(err, structured.ErrDecode) {
			return nil, err
		}
		slog.WarnContext(ctx, "structured conversion failed, falling back to plain text",
			"document_id", t.DocumentID, "error", err)
	}

	chunks := c.splitter.SplitDocuments(content, meta)
	numberChunks(chunks)
	return chunks, nil
}

func (c *Coordinator) fail(ctx context.Context, documentID string, cause error) error {
	slog.ErrorContext(ctx, "ingestion failed", "document_id", documentID, "error", cause)
	if err := c.statuses.MarkFailed(ctx, documentID, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to record failure", "document_id", documentID, "error", err)
	}
	return cause
}

func (c *Coordinator) removeTemp(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.WarnContext(ctx, "failed to remove temp file", "path", path, "error", err)
	}
}

func numberChunks(chunks []text.Chunk) {
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = map[string]any{}
		}
		chunks[i].Metadata["chunk_index"] = i
	}
}
