// Package genai provides the language model gateway used by the flow engine.
//
// The default client talks to the OpenAI chat completions API; gemini.go
// provides a drop-in Gemini alternative selected by configuration.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ribera-digital/bankline/internal/models"
)

// Default request settings. Replies are short conversational turns.
const (
	DefaultModel       = openai.ChatModelGPT4o
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 200
)

// systemPrompt is the fixed persona instruction prepended to every request.
const systemPrompt = `Eres el asistente IA de Banorte
Un agente de IA preparado para apoyar a los clientes del banco Banorte a realizar diferentes operaciones.

Si un cliente/usuario te pregunta algo no relacionado, contesta su pregunta y amablemente regresa al flujo.
Cuando se te de la instrucción de responder con un JSON, no incluyas ningún mensaje o titulos extra, symbolos o texto. Tu respuesta sera parseada directamente. Dispones de los ultimos 5 mensajes que intercambiaste con el usuario, puedes utilizar esa información como contexto.

Cuando pidas información del cliente, intenta no abrumarlo, no le pidas toda la información de golpe.`

// ErrNoChoicesReturned indicates the model returned an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// Generator produces one assistant reply for a conversation turn. The state
// context describes the active flow; history is the recent message window in
// oldest-to-newest order.
type Generator interface {
	Respond(ctx context.Context, stateContext string, history []models.Message, userMessage string) (string, error)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	slog.Debug("GenAI client config loaded", "APIKey_set", cfg.APIKey != "", "model", cfg.Model)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// Respond generates one assistant reply for the current turn.
func (c *Client) Respond(ctx context.Context, stateContext string, history []models.Message, userMessage string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.SystemMessage("Historial de conversación (Últimos 5 mensajes):\n" + FormatHistory(history)),
			openai.SystemMessage("Contexto actual: " + stateContext),
			openai.UserMessage(userMessage),
		},
		Temperature:      openai.Float(DefaultTemperature),
		MaxTokens:        openai.Int(DefaultMaxTokens),
		TopP:             openai.Float(1.0),
		FrequencyPenalty: openai.Float(0),
		PresencePenalty:  openai.Float(0),
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("GenAI completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := CleanResponse(resp.Choices[0].Message.Content)
	slog.Debug("GenAI completion succeeded", "length", len(content))
	return content, nil
}

// FormatHistory renders the message window as the model sees it.
func FormatHistory(history []models.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "Bot"
		if m.Origin == models.OriginUser {
			speaker = "Usuario"
		}
		lines = append(lines, speaker+": "+m.Body)
	}
	return strings.Join(lines, "\n")
}

// CleanResponse strips the code-fence reflex some models keep despite the
// instructions; the structured-response parser needs the bare JSON.
func CleanResponse(content string) string {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.ReplaceAll(content, "json", "")
	return strings.TrimSpace(content)
}
