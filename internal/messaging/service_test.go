package messaging

import (
	"context"
	"strings"
	"testing"

	"github.com/ribera-digital/bankline/internal/cloudapi"
	"github.com/ribera-digital/bankline/internal/whatsapp"
)

func TestCloudServicePassThrough(t *testing.T) {
	mock := cloudapi.NewMockClient()
	svc := NewCloudService(mock)
	ctx := context.Background()

	if err := svc.SendText(ctx, "5215550001111", "hola"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if len(mock.Texts) != 1 || mock.Texts[0].Body != "hola" {
		t.Errorf("unexpected recorded texts: %v", mock.Texts)
	}

	if err := svc.SendDocument(ctx, "5215550001111", "media-1", "quote.pdf"); err != nil {
		t.Fatalf("SendDocument failed: %v", err)
	}
	if len(mock.Documents) != 1 || mock.Documents[0].MediaID != "media-1" {
		t.Errorf("unexpected recorded documents: %v", mock.Documents)
	}

	id, err := svc.UploadMedia(ctx, "quote.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if id == "" {
		t.Error("expected non-empty media id")
	}
}

func TestTextServiceDegradesDocument(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewTextService(mock)

	if err := svc.SendDocument(context.Background(), "5215550001111", "media-1", "Cotización hipotecario.pdf"); err != nil {
		t.Fatalf("SendDocument failed: %v", err)
	}
	if len(mock.Sent) != 1 || !strings.Contains(mock.Sent[0], "Cotización hipotecario.pdf") {
		t.Errorf("expected filename reference, got %v", mock.Sent)
	}
}

func TestTextServiceDegradesList(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewTextService(mock)

	list := cloudapi.List{
		Header: "Opciones",
		Body:   "Elige una opción",
		Footer: "Asistente",
		Sections: []cloudapi.Section{
			{Title: "Créditos", Rows: []cloudapi.Row{
				{ID: "hipotecario", Title: "Crédito hipotecario", Description: "Cotiza tu casa"},
				{ID: "automotriz", Title: "Crédito automotriz"},
			}},
		},
	}
	if err := svc.SendList(context.Background(), "5215550001111", list); err != nil {
		t.Fatalf("SendList failed: %v", err)
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("expected one message, got %d", len(mock.Sent))
	}
	body := mock.Sent[0]
	for _, want := range []string{"Opciones", "1. Crédito hipotecario", "2. Crédito automotriz", "Asistente"} {
		if !strings.Contains(body, want) {
			t.Errorf("menu missing %q in %q", want, body)
		}
	}
}
