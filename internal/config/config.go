package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"askbase"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"askbase"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	GeminiLLMModel string `envconfig:"GEMINI_LLM_MODEL" default:"gemini-1.5-flash"`

	// Reranker
	RerankEnabled    bool   `envconfig:"RERANK_ENABLED" default:"true"`
	RerankProvider   string `envconfig:"RERANK_PROVIDER" default:"jina"`
	RerankAPIKey     string `envconfig:"RERANK_API_KEY"`
	RerankCandidates int    `envconfig:"RERANK_CANDIDATES" default:"20"`
	RerankTopK       int    `envconfig:"RERANK_TOP_K" default:"5"`

	// Retrieval
	ScoreThreshold float64 `envconfig:"SCORE_THRESHOLD" default:"0.5"`

	// Ingestion
	ChunkSize       int    `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap    int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	MaxCrawlDepth   int    `envconfig:"MAX_CRAWL_DEPTH" default:"3"`
	MaxLinksPerPage int    `envconfig:"MAX_LINKS_PER_PAGE" default:"20"`
	CrawlDelayMS    int    `envconfig:"CRAWL_DELAY_MS" default:"500"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"100"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may also come from the shell, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.ChunkSize > 0 && c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be smaller than CHUNK_SIZE", ErrMissingRequired)
	}
	return nil
}

func (c *Config) CrawlDelay() time.Duration {
	return time.Duration(c.CrawlDelayMS) * time.Millisecond
}
