package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultSystemPrompt is used when a session has no prompt of its own.
const DefaultSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. If the context does not contain the answer, say that you don't know."

type Generator struct {
	client *genai.Client
	model  string
}

func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Generator{client: client, model: model}, nil
}

// Generate produces an answer grounded in contextText. An empty systemPrompt
// falls back to DefaultSystemPrompt.
func (g *Generator) Generate(ctx context.Context, query, contextText, systemPrompt string) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, query)
	slog.DebugContext(ctx, "generating answer", "model", g.model, "context_length", len(contextText))

	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err)
		return "", err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}
