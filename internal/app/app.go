package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"askbase/features/document"
	"askbase/features/query"
	"askbase/features/session"
	"askbase/internal/adapter/gemini"
	"askbase/internal/adapter/reranker"
	wstore "askbase/internal/adapter/weaviate"
	"askbase/internal/config"
	"askbase/internal/crawler"
	"askbase/internal/indexer"
	"askbase/internal/ingest"
	"askbase/internal/middleware"
	"askbase/internal/retrieval"
	"askbase/internal/structured"
	"askbase/internal/text"
	"askbase/internal/worker"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler     http.Handler
	Coordinator *ingest.Coordinator
	Consumer    *worker.IngestConsumer

	port int
}

func New(ctx context.Context, cfg *config.Config, db *sql.DB, store *wstore.Store, taskPub TaskPublisher) (*App, error) {
	// Adapters
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}
	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiLLMModel)
	if err != nil {
		return nil, fmt.Errorf("gemini generator: %w", err)
	}

	var rerankClient retrieval.Reranker
	if cfg.RerankEnabled && cfg.RerankAPIKey != "" {
		rerankClient = reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey)
	}

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	pipeline := retrieval.NewPipeline(embedder, store, rerankClient, generator, queryLogger, retrieval.Config{
		Candidates: cfg.RerankCandidates,
		TopK:       cfg.RerankTopK,
		Threshold:  cfg.ScoreThreshold,
	})

	// Ingestion
	splitter := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	converter := structured.NewConverter(splitter)
	siteCrawler := crawler.New(cfg.CrawlDelay())
	chunkIndexer := indexer.New(embedder, store)

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)
	docService := document.NewService(docRepo, taskPub)
	docHandler := document.NewHandler(docService, cfg.UploadDir, cfg.MaxUploadSizeMB<<20)

	coordinator := ingest.NewCoordinator(
		siteCrawler, splitter, converter, chunkIndexer, docRepo,
		cfg.MaxCrawlDepth, cfg.MaxLinksPerPage)

	// Feature: Session
	sessRepo := session.NewPostgresRepo(db)
	sessService := session.NewService(sessRepo, store)
	sessHandler := session.NewHandler(sessService)

	// Feature: Query
	queryHandler := query.NewHandler(pipeline, sessService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-Correlation-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Identity runs inside CORS so preflight requests pass without a user id.
	secured := func(next http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(enableCORS(middleware.Identity(next).ServeHTTP))
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /api/sessions", secured(sessHandler.Create))
	mux.Handle("GET /api/sessions", secured(sessHandler.List))
	mux.Handle("GET /api/sessions/{id}", secured(sessHandler.Get))
	mux.Handle("PUT /api/sessions/{id}/prompt", secured(sessHandler.UpdatePrompt))
	mux.Handle("DELETE /api/sessions/{id}", secured(sessHandler.Delete))

	mux.Handle("POST /api/ingest/file/{session_id}", secured(docHandler.Upload))
	mux.Handle("POST /api/ingest/url", secured(docHandler.IngestURL))
	mux.Handle("GET /api/documents/{session_id}", secured(docHandler.ListBySession))
	mux.Handle("GET /api/documents/status/{id}", secured(docHandler.Status))

	mux.Handle("POST /api/query", secured(queryHandler.Query))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:     mux,
		Coordinator: coordinator,
		Consumer:    worker.NewIngestConsumer(coordinator),
		port:        cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
