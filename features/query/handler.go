package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"askbase/internal/middleware"
	"askbase/internal/retrieval"
)

type Answerer interface {
	Answer(ctx context.Context, query string, userID int64, systemPrompt string) retrieval.Result
}

type PromptLookup interface {
	SystemPrompt(ctx context.Context, sessionID string, userID int64) string
}

// Handler answers questions against the user's indexed content.
type Handler struct {
	pipeline Answerer
	prompts  PromptLookup
}

func NewHandler(pipeline Answerer, prompts PromptLookup) *Handler {
	return &Handler{pipeline: pipeline, prompts: prompts}
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		SessionID string `json:"session_id"`
		Query     string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Query is required", http.StatusBadRequest)
		return
	}

	systemPrompt := ""
	if req.SessionID != "" {
		systemPrompt = h.prompts.SystemPrompt(r.Context(), req.SessionID, userID)
	}

	// The pipeline degrades instead of failing: stage errors surface inline
	// next to the best-effort response, still as HTTP success.
	result := h.pipeline.Answer(r.Context(), req.Query, userID, systemPrompt)
	if result.Err != nil {
		slog.ErrorContext(r.Context(), "query pipeline degraded", "error", result.Err)
	}

	data := map[string]interface{}{
		"response": result.Response,
		"sources":  result.Sources,
	}
	if result.Err != nil {
		data["error"] = result.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
