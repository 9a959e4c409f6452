// Package gemini implements the generative fallback on top of the Gemini
// API. It answers free-form Hebrew questions grounded strictly in the JSON
// context the pipeline assembles.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"port-ops-bot/internal/common/config"
	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/models"
)

var ErrGeneration = errors.New("GENERATION_ERROR")

const systemInstruction = "You are a data analyst for a port operations team. " +
	"Answer in Hebrew, using only the data provided in the JSON context. " +
	"If the context does not contain the answer, say so briefly in Hebrew. " +
	"Keep answers short and factual."

// Generator satisfies the pipeline's fallback generator over a Gemini model.
type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      logger.Logger
}

func NewGenerator(ctx context.Context, cfg config.GeminiConfig, log logger.Logger) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}
	return &Generator{
		client:      client,
		model:       model,
		temperature: temperature,
		logger:      log,
	}, nil
}

// Ask runs a single generation for the question against the supplied context.
func (g *Generator) Ask(ctx context.Context, question string, metrics *models.MetricsSummary, knowledge []string) (string, error) {
	prompt, err := buildPrompt(question, metrics, knowledge)
	if err != nil {
		return "", fmt.Errorf("%w: build prompt: %v", ErrGeneration, err)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:       genai.Ptr(g.temperature),
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate", ErrGeneration)
	}

	g.logger.Debug("generation completed", map[string]interface{}{
		"model":  g.model,
		"length": len(text),
	})
	return text, nil
}

// buildPrompt renders the grounding context as JSON followed by the question.
// Absent context pieces are omitted rather than sent as nulls.
func buildPrompt(question string, metrics *models.MetricsSummary, knowledge []string) (string, error) {
	contextDoc := map[string]interface{}{}
	if metrics != nil {
		contextDoc["metrics"] = metrics
	}
	if len(knowledge) > 0 {
		contextDoc["reference"] = knowledge
	}

	raw, err := json.Marshal(contextDoc)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Contextual data (JSON):\n")
	b.Write(raw)
	b.WriteString("\n\nUsing only the context above, answer the following question:\n")
	b.WriteString(question)
	return b.String(), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
