package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"askbase/internal/ingest"
	"askbase/internal/middleware"
)

// taskTimeout bounds one ingestion run end to end, crawl included.
const taskTimeout = 10 * time.Minute

type Processor interface {
	Process(ctx context.Context, t ingest.Task) error
}

// IngestConsumer drains the ingestion topic and runs each task through the
// coordinator. It is registered with concurrency 1 so heavyweight tasks,
// crawls in particular, never run in parallel.
type IngestConsumer struct {
	processor Processor
}

func NewIngestConsumer(p Processor) *IngestConsumer {
	return &IngestConsumer{processor: p}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var envelope TaskEnvelope
	if err := json.Unmarshal(m.Body, &envelope); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if envelope.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, envelope.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	slog.InfoContext(ctx, "processing ingestion task",
		"document_id", envelope.Task.DocumentID, "kind", envelope.Task.Kind)

	if err := h.processor.Process(ctx, envelope.Task); err != nil {
		// The coordinator already recorded the failure on the document row;
		// requeueing would double-process a task that reached a terminal
		// state.
		slog.ErrorContext(ctx, "ingestion task failed",
			"document_id", envelope.Task.DocumentID, "error", err)
		return nil
	}
	return nil
}
