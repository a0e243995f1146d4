package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/genai"

	"github.com/ribera-digital/bankline/internal/models"
)

// DefaultGeminiModel is used when no model override is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient is the Gemini-backed Generator. It honors the same prompt
// layout as the OpenAI client so the flow engine can swap providers freely.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient initializes a Gemini generator. The API key falls back to
// the GEMINI_API_KEY environment variable.
func NewGeminiClient(ctx context.Context, opts ...Option) (*GeminiClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	slog.Debug("Gemini client config loaded", "APIKey_set", cfg.APIKey != "", "model", cfg.Model)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Respond generates one assistant reply for the current turn.
func (g *GeminiClient) Respond(ctx context.Context, stateContext string, history []models.Message, userMessage string) (string, error) {
	prompt := "Historial de conversación (Últimos 5 mensajes):\n" + FormatHistory(history) +
		"\n\nContexto actual: " + stateContext +
		"\n\nMensaje del usuario: " + userMessage
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](DefaultTemperature),
		MaxOutputTokens:   DefaultMaxTokens,
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		slog.Error("Gemini completion failed", "error", err)
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("Gemini completion succeeded", "length", len(text))
	return CleanResponse(text), nil
}
