package config

const (
	// TopicIngest is the NSQ topic for document ingestion tasks. A single
	// single-concurrency consumer drains it, so ingestions are serialized.
	TopicIngest = "ingest.task"

	// IngestChannel is the consumer channel name for the backend worker.
	IngestChannel = "backend"
)
