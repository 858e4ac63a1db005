package worker

import "askbase/internal/ingest"

// TaskEnvelope is the queue message for one ingestion task. The correlation
// id survives the queue hop so worker logs line up with the request that
// accepted the upload.
type TaskEnvelope struct {
	Task          ingest.Task `json:"task"`
	CorrelationID string      `json:"correlation_id"`
}
