package cloudapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(
		WithToken("test-token"),
		WithPhoneNumberID("12345"),
		WithBaseURL(srv.URL),
		WithMaxRetries(1),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, srv
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("WHATSAPP_TOKEN", "")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error when token is missing")
	}
	if _, err := NewClient(WithToken("tok")); err == nil {
		t.Fatal("expected error when phone number id is missing")
	}
}

func TestSendText(t *testing.T) {
	var gotPath, gotToken string
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.SendText(context.Background(), "5215550001111", "hola"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if gotPath != "/v13.0/12345/messages" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotToken != "test-token" {
		t.Errorf("unexpected access token %q", gotToken)
	}
	if gotBody["messaging_product"] != "whatsapp" || gotBody["recipient_type"] != "individual" {
		t.Errorf("unexpected envelope: %v", gotBody)
	}
	text, ok := gotBody["text"].(map[string]any)
	if !ok || text["body"] != "hola" {
		t.Errorf("unexpected text payload: %v", gotBody["text"])
	}
}

func TestSendTextValidation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	if err := client.SendText(context.Background(), "", "hola"); err == nil {
		t.Error("expected error for empty recipient")
	}
	if err := client.SendText(context.Background(), "5215550001111", ""); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestSendDocumentByID(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.SendDocumentByID(context.Background(), "5215550001111", "media-9", "Cotización hipotecario.pdf"); err != nil {
		t.Fatalf("SendDocumentByID failed: %v", err)
	}
	if gotBody["type"] != "document" {
		t.Errorf("unexpected type %v", gotBody["type"])
	}
	doc, ok := gotBody["document"].(map[string]any)
	if !ok || doc["id"] != "media-9" || doc["filename"] != "Cotización hipotecario.pdf" {
		t.Errorf("unexpected document payload: %v", gotBody["document"])
	}
}

func TestSendListDefaultsButton(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	list := List{
		Header: "Opciones",
		Body:   "Elige una opción",
		Footer: "Asistente",
		Sections: []Section{
			{Title: "Créditos", Rows: []Row{{ID: "hipotecario", Title: "Crédito hipotecario"}}},
		},
	}
	if err := client.SendList(context.Background(), "5215550001111", list); err != nil {
		t.Fatalf("SendList failed: %v", err)
	}
	interactive, ok := gotBody["interactive"].(map[string]any)
	if !ok {
		t.Fatalf("missing interactive payload: %v", gotBody)
	}
	action, ok := interactive["action"].(map[string]any)
	if !ok || action["button"] != "Ver opciones" {
		t.Errorf("unexpected action payload: %v", interactive["action"])
	}

	if err := client.SendList(context.Background(), "5215550001111", List{}); err == nil {
		t.Error("expected error for list without sections")
	}
}

func TestUploadMedia(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v13.0/12345/media" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("messaging_product"); got != "whatsapp" {
			t.Errorf("unexpected messaging_product %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "quote.pdf" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "%PDF-1.7" {
			t.Errorf("unexpected file content %q", content)
		}
		w.Write([]byte(`{"id":"uploaded-7"}`))
	}))

	id, err := client.UploadMedia(context.Background(), "quote.pdf", "application/pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if id != "uploaded-7" {
		t.Errorf("unexpected media id %q", id)
	}
}

func TestFetchMedia(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/v12.0/media-3", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"url":       srv.URL + "/download/media-3",
			"mime_type": "image/jpeg",
		})
	})
	mux.HandleFunc("/download/media-3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg bytes"))
	})
	client, testSrv := newTestClient(t, mux)
	srv = testSrv

	content, mimeType, err := client.FetchMedia(context.Background(), "media-3")
	if err != nil {
		t.Fatalf("FetchMedia failed: %v", err)
	}
	if string(content) != "jpeg bytes" {
		t.Errorf("unexpected content %q", content)
	}
	if mimeType != "image/jpeg" {
		t.Errorf("unexpected mime type %q", mimeType)
	}
}

func TestSendTextRetriesTransientFailure(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.SendText(context.Background(), "5215550001111", "hola"); err != nil {
		t.Fatalf("SendText failed after retry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestSendTextReportsAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))

	err := client.SendText(context.Background(), "5215550001111", "hola")
	if err == nil {
		t.Fatal("expected error from API failure")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry status code, got %v", err)
	}
}
