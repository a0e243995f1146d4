package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ribera-digital/bankline/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp openai.ChatCompletion
	err  error
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.resp, nil
}

func TestRespond_Success(t *testing.T) {
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Hola Mundo"}},
		},
	}
	client := &Client{chat: &mockChatService{resp: mockResp}, model: DefaultModel}
	out, err := client.Respond(context.Background(), "contexto", nil, "hola")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hola Mundo" {
		t.Errorf("expected 'Hola Mundo', got '%s'", out)
	}
}

func TestRespond_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}, model: DefaultModel}
	_, err := client.Respond(context.Background(), "ctx", nil, "hola")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestRespond_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}, model: DefaultModel}
	_, err := client.Respond(context.Background(), "ctx", nil, "hola")
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Error("expected client instance, got nil")
	}
}

func TestFormatHistory(t *testing.T) {
	got := FormatHistory([]models.Message{
		{Origin: models.OriginUser, Body: "hola"},
		{Origin: models.OriginBot, Body: "¿en qué puedo ayudarte?"},
	})
	want := "Usuario: hola\nBot: ¿en qué puedo ayudarte?"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCleanResponse(t *testing.T) {
	in := "```json\n{\"action\": \"hipotecario\"}\n```"
	got := CleanResponse(in)
	if got != `{"action": "hipotecario"}` {
		t.Errorf("unexpected cleaned response: %q", got)
	}
}
